package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/vehicle-clearance/constants"
	"github.com/joseph-ayodele/vehicle-clearance/internal/common"
	"github.com/joseph-ayodele/vehicle-clearance/internal/entity"
)

type verificationKey struct {
	vehicleID uuid.UUID
	category  constants.VerificationCategory
}

// MemoryStore keeps everything in process memory. Values are copied in and
// out so callers never share state with the store.
type MemoryStore struct {
	mu            sync.Mutex
	vehicles      map[uuid.UUID]entity.Vehicle
	documents     map[uuid.UUID]entity.Document
	verifications map[verificationKey]entity.Verification
	events        []entity.VerificationEvent
	requests      map[uuid.UUID]entity.ClearanceRequest
	users         []entity.User
	notifications []entity.Notification
	history       []entity.HistoryEntry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		vehicles:      map[uuid.UUID]entity.Vehicle{},
		documents:     map[uuid.UUID]entity.Document{},
		verifications: map[verificationKey]entity.Verification{},
		requests:      map[uuid.UUID]entity.ClearanceRequest{},
	}
}

func (m *MemoryStore) Migrate(context.Context) error { return nil }

func (m *MemoryStore) Close() {}

func (m *MemoryStore) Repositories() Repositories {
	return Repositories{
		Documents:     memDocuments{m},
		Vehicles:      memVehicles{m},
		Verifications: memVerifications{m},
		Clearances:    memClearances{m},
		Users:         memUsers{m},
		Notifications: memNotifications{m},
		History:       memHistory{m},
	}
}

func cloneRaw(b json.RawMessage) json.RawMessage {
	if b == nil {
		return nil
	}
	return append(json.RawMessage(nil), b...)
}

type memVehicles struct{ m *MemoryStore }

func (r memVehicles) Create(_ context.Context, v *entity.Vehicle) error {
	if err := prepareVehicle(v); err != nil {
		return err
	}
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.vehicles[v.ID]; ok {
		return fmt.Errorf("vehicle %s: %w", v.ID, common.ErrConflict)
	}
	r.m.vehicles[v.ID] = *v
	return nil
}

func (r memVehicles) Get(_ context.Context, id uuid.UUID) (*entity.Vehicle, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	v, ok := r.m.vehicles[id]
	if !ok {
		return nil, fmt.Errorf("vehicle %s: %w", id, common.ErrNotFound)
	}
	return &v, nil
}

func (r memVehicles) Update(_ context.Context, id uuid.UUID, patch entity.VehiclePatch) (*entity.Vehicle, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	v, ok := r.m.vehicles[id]
	if !ok {
		return nil, fmt.Errorf("vehicle %s: %w", id, common.ErrNotFound)
	}
	if patch.Status != nil {
		v.Status = *patch.Status
	}
	if patch.PlateNumber != nil {
		v.PlateNumber = *patch.PlateNumber
	}
	if patch.PolicyNumber != nil {
		v.PolicyNumber = *patch.PolicyNumber
	}
	if patch.SubmissionAttemptedAt != nil {
		t := patch.SubmissionAttemptedAt.UTC()
		v.SubmissionAttemptedAt = &t
	}
	v.UpdatedAt = now()
	r.m.vehicles[id] = v
	return &v, nil
}

func (r memVehicles) ListByStatus(_ context.Context, status constants.VehicleStatus, limit int) ([]*entity.Vehicle, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []*entity.Vehicle
	for _, v := range r.m.vehicles {
		if v.Status == status {
			out = append(out, &v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r memVehicles) ListDueForSubmission(ctx context.Context, attemptedBefore time.Time, limit int) ([]*entity.Vehicle, error) {
	pending, err := r.ListByStatus(ctx, constants.VehiclePendingSubmission, 0)
	if err != nil {
		return nil, err
	}
	var out []*entity.Vehicle
	for _, v := range pending {
		if v.SubmissionAttemptedAt == nil || v.SubmissionAttemptedAt.Before(attemptedBefore) {
			out = append(out, v)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type memDocuments struct{ m *MemoryStore }

func (r memDocuments) Create(_ context.Context, d *entity.Document) error {
	if err := prepareDocument(d); err != nil {
		return err
	}
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.documents[d.ID] = *d
	return nil
}

func (r memDocuments) list(keep func(entity.Document) bool) []*entity.Document {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []*entity.Document
	for _, d := range r.m.documents {
		if keep(d) {
			out = append(out, &d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UploadedAt.Before(out[j].UploadedAt) })
	return out
}

func (r memDocuments) ListByVehicle(_ context.Context, vehicleID uuid.UUID) ([]*entity.Document, error) {
	return r.list(func(d entity.Document) bool {
		return d.VehicleID != nil && *d.VehicleID == vehicleID
	}), nil
}

func (r memDocuments) ListUploadedBetween(_ context.Context, from, to time.Time, vehicleID uuid.UUID) ([]*entity.Document, error) {
	return r.list(func(d entity.Document) bool {
		if d.UploadedAt.Before(from) || d.UploadedAt.After(to) {
			return false
		}
		return d.VehicleID == nil || *d.VehicleID == vehicleID
	}), nil
}

func (r memDocuments) LinkVehicle(_ context.Context, docID, vehicleID uuid.UUID) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	d, ok := r.m.documents[docID]
	if !ok {
		return fmt.Errorf("document %s: %w", docID, common.ErrNotFound)
	}
	if d.VehicleID != nil && *d.VehicleID != vehicleID {
		return fmt.Errorf("document %s is linked to another vehicle: %w", docID, common.ErrConflict)
	}
	d.VehicleID = &vehicleID
	r.m.documents[docID] = d
	return nil
}

type memVerifications struct{ m *MemoryStore }

func (r memVerifications) UpdateStatus(_ context.Context, u VerificationUpdate) (*entity.Verification, error) {
	if err := validateVerificationUpdate(u); err != nil {
		return nil, err
	}
	at := now()
	v := entity.Verification{
		VehicleID:  u.VehicleID,
		Category:   u.Category,
		Status:     u.Status,
		VerifiedBy: u.VerifiedBy,
		Note:       u.Note,
		Metadata:   rawJSON(u.Metadata),
		UpdatedAt:  at,
	}
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.verifications[verificationKey{u.VehicleID, u.Category}] = v
	r.m.events = append(r.m.events, entity.VerificationEvent{
		ID:         uuid.New(),
		VehicleID:  v.VehicleID,
		Category:   v.Category,
		Status:     v.Status,
		VerifiedBy: v.VerifiedBy,
		Note:       v.Note,
		Metadata:   cloneRaw(v.Metadata),
		CreatedAt:  at,
	})
	v.Metadata = cloneRaw(v.Metadata)
	return &v, nil
}

func (r memVerifications) Get(_ context.Context, vehicleID uuid.UUID, category constants.VerificationCategory) (*entity.Verification, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	v, ok := r.m.verifications[verificationKey{vehicleID, category}]
	if !ok {
		return nil, fmt.Errorf("%s verification for vehicle %s: %w", category, vehicleID, common.ErrNotFound)
	}
	v.Metadata = cloneRaw(v.Metadata)
	return &v, nil
}

func (r memVerifications) History(_ context.Context, vehicleID uuid.UUID, category constants.VerificationCategory) ([]*entity.VerificationEvent, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []*entity.VerificationEvent
	for _, e := range r.m.events {
		if e.VehicleID == vehicleID && e.Category == category {
			e.Metadata = cloneRaw(e.Metadata)
			out = append(out, &e)
		}
	}
	return out, nil
}

func (r memVerifications) List(_ context.Context, vehicleID *uuid.UUID) ([]*entity.Verification, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []*entity.Verification
	for k, v := range r.m.verifications {
		if vehicleID != nil && k.vehicleID != *vehicleID {
			continue
		}
		v.Metadata = cloneRaw(v.Metadata)
		out = append(out, &v)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].VehicleID != out[j].VehicleID {
			return out[i].VehicleID.String() < out[j].VehicleID.String()
		}
		return out[i].Category < out[j].Category
	})
	return out, nil
}

type memClearances struct{ m *MemoryStore }

func cloneRequest(c entity.ClearanceRequest) *entity.ClearanceRequest {
	c.DocumentIDs = slices.Clone(c.DocumentIDs)
	c.Metadata = cloneRaw(c.Metadata)
	return &c
}

// openLocked returns the open request for (vehicle, type); m.mu must be held.
func (m *MemoryStore) openLocked(vehicleID uuid.UUID, rt constants.RequestType) (entity.ClearanceRequest, bool) {
	for _, c := range m.requests {
		if c.VehicleID == vehicleID && c.RequestType == rt && !c.Status.IsTerminal() {
			return c, true
		}
	}
	return entity.ClearanceRequest{}, false
}

func (r memClearances) Create(_ context.Context, req *entity.ClearanceRequest) error {
	if err := prepareClearance(req); err != nil {
		return err
	}
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if !req.Status.IsTerminal() {
		if _, ok := r.m.openLocked(req.VehicleID, req.RequestType); ok {
			return fmt.Errorf("open %s request for vehicle %s: %w", req.RequestType, req.VehicleID, common.ErrConflict)
		}
	}
	r.m.requests[req.ID] = *cloneRequest(*req)
	return nil
}

func (r memClearances) CreateIfNoOpen(_ context.Context, req *entity.ClearanceRequest) (*entity.ClearanceRequest, bool, error) {
	if err := prepareClearance(req); err != nil {
		return nil, false, err
	}
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if existing, ok := r.m.openLocked(req.VehicleID, req.RequestType); ok {
		return cloneRequest(existing), false, nil
	}
	r.m.requests[req.ID] = *cloneRequest(*req)
	return req, true, nil
}

func (r memClearances) ListByVehicle(ctx context.Context, vehicleID uuid.UUID) ([]*entity.ClearanceRequest, error) {
	return r.List(ctx, ClearanceFilter{VehicleID: &vehicleID})
}

func (r memClearances) UpdateStatus(_ context.Context, id uuid.UUID, status constants.RequestStatus, details entity.StatusDetails) (*entity.ClearanceRequest, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	c, ok := r.m.requests[id]
	if !ok {
		return nil, fmt.Errorf("clearance request %s: %w", id, common.ErrNotFound)
	}
	if c.Status.IsTerminal() && !status.IsTerminal() {
		if open, ok := r.m.openLocked(c.VehicleID, c.RequestType); ok && open.ID != id {
			return nil, fmt.Errorf("reopening clearance request %s: %w", id, common.ErrConflict)
		}
	}
	applyStatus(&c, status, details, now())
	r.m.requests[id] = c
	return cloneRequest(c), nil
}

func (r memClearances) List(_ context.Context, f ClearanceFilter) ([]*entity.ClearanceRequest, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []*entity.ClearanceRequest
	for _, c := range r.m.requests {
		switch {
		case f.VehicleID != nil && c.VehicleID != *f.VehicleID,
			f.RequestType != "" && c.RequestType != f.RequestType,
			f.Status != "" && c.Status != f.Status,
			f.From != nil && c.CreatedAt.Before(*f.From),
			f.To != nil && c.CreatedAt.After(*f.To):
			continue
		}
		out = append(out, cloneRequest(c))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

type memUsers struct{ m *MemoryStore }

func (r memUsers) Create(_ context.Context, u *entity.User) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if err := validateUser(u); err != nil {
		return err
	}
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, existing := range r.m.users {
		if existing.Email == u.Email {
			return fmt.Errorf("user %s: %w", u.Email, common.ErrConflict)
		}
	}
	r.m.users = append(r.m.users, *u)
	return nil
}

func (r memUsers) FindActiveByRole(_ context.Context, role, organization string) (*entity.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var found *entity.User
	for _, u := range r.m.users {
		if u.Role != role || !u.Active || (organization != "" && u.Organization != organization) {
			continue
		}
		if found == nil || u.Email < found.Email {
			found = &u
		}
	}
	if found == nil {
		return nil, fmt.Errorf("active %s user: %w", role, common.ErrNotFound)
	}
	return found, nil
}

type memNotifications struct{ m *MemoryStore }

func (r memNotifications) Create(_ context.Context, n *entity.Notification) error {
	if err := prepareNotification(n); err != nil {
		return err
	}
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.notifications = append(r.m.notifications, *n)
	return nil
}

func (r memNotifications) ListByUser(_ context.Context, userID uuid.UUID) ([]*entity.Notification, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []*entity.Notification
	for _, n := range r.m.notifications {
		if n.UserID == userID {
			out = append(out, &n)
		}
	}
	return out, nil
}

type memHistory struct{ m *MemoryStore }

func (r memHistory) Add(_ context.Context, e *entity.HistoryEntry) error {
	if err := prepareHistory(e); err != nil {
		return err
	}
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	stored := *e
	stored.Metadata = cloneRaw(e.Metadata)
	r.m.history = append(r.m.history, stored)
	return nil
}

func (r memHistory) ListByVehicle(_ context.Context, vehicleID uuid.UUID) ([]*entity.HistoryEntry, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []*entity.HistoryEntry
	for _, e := range r.m.history {
		if e.VehicleID == vehicleID {
			e.Metadata = cloneRaw(e.Metadata)
			out = append(out, &e)
		}
	}
	return out, nil
}
