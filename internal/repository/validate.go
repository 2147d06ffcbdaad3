package repository

import (
	"github.com/joseph-ayodele/vehicle-clearance/constants"
	"github.com/joseph-ayodele/vehicle-clearance/internal/common"
	"github.com/joseph-ayodele/vehicle-clearance/internal/entity"
)

func validateVehicle(v *entity.Vehicle) error {
	return common.NewValidator().
		Field("plate_number", v.PlateNumber, common.PlateNumber).
		Field("status", string(v.Status), common.OneOf(
			string(constants.VehiclePendingSubmission),
			string(constants.VehicleSubmitted),
			string(constants.VehicleProcessing),
			string(constants.VehicleApproved),
			string(constants.VehicleRejected),
		)).
		Field("owner_email", v.OwnerEmail, common.MaxLen(254)).
		Error()
}

func validateDocument(d *entity.Document) error {
	return common.NewValidator().
		Field("type", string(d.Type), common.Required).
		Field("storage_path", d.StoragePath, common.Required).
		Error()
}

func validateClearance(r *entity.ClearanceRequest) error {
	return common.NewValidator().
		Field("request_type", string(r.RequestType), common.OneOf(string(constants.RequestHPG), string(constants.RequestInsurance))).
		Field("status", string(r.Status), common.Required).
		Error()
}

func validateUser(u *entity.User) error {
	return common.NewValidator().
		Field("email", u.Email, common.Required).
		Field("role", u.Role, common.Required).
		Error()
}

func validateNotification(n *entity.Notification) error {
	return common.NewValidator().
		Field("title", n.Title, common.Required).
		Field("severity", string(n.Severity), common.Required).
		Error()
}
