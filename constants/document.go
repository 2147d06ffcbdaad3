package constants

import (
	"strings"
)

// DocumentType is the logical type tag of an uploaded document.
type DocumentType string

const (
	DocRegistrationCert DocumentType = "registration_cert" // OR/CR
	DocInsuranceCert    DocumentType = "insurance_cert"
	DocEmissionCert     DocumentType = "emission_cert"
	DocOwnerID          DocumentType = "owner_id"
	DocHPGClearance     DocumentType = "hpg_clearance"
	DocSalesInvoice     DocumentType = "sales_invoice"
	DocCSR              DocumentType = "csr"
	DocOther            DocumentType = "other"
)

var allDocumentTypes = []DocumentType{
	DocRegistrationCert,
	DocInsuranceCert,
	DocEmissionCert,
	DocOwnerID,
	DocHPGClearance,
	DocSalesInvoice,
	DocCSR,
	DocOther,
}

func DocumentTypes() []string {
	result := make([]string, len(allDocumentTypes))
	for i, t := range allDocumentTypes {
		result[i] = string(t)
	}
	return result
}

// CanonicalizeDocumentType maps loose upload tags onto a DocumentType.
func CanonicalizeDocumentType(input string) (DocumentType, bool) {
	if input == "" {
		return DocOther, false
	}

	normalized := strings.ToLower(strings.TrimSpace(input))
	normalized = strings.NewReplacer("-", "_", " ", "_").Replace(normalized)

	synonyms := map[string]DocumentType{
		"or_cr":                       DocRegistrationCert,
		"orcr":                        DocRegistrationCert,
		"registration":                DocRegistrationCert,
		"certificate_of_registration": DocRegistrationCert,
		"insurance":                   DocInsuranceCert,
		"ctpl":                        DocInsuranceCert,
		"emission":                    DocEmissionCert,
		"emission_test":               DocEmissionCert,
		"valid_id":                    DocOwnerID,
		"owner_valid_id":              DocOwnerID,
		"id":                          DocOwnerID,
		"hpg":                         DocHPGClearance,
		"invoice":                     DocSalesInvoice,
		"certificate_of_stock":        DocCSR,
	}
	if t, ok := synonyms[normalized]; ok {
		return t, true
	}

	for _, t := range allDocumentTypes {
		if normalized == string(t) {
			return t, true
		}
	}
	return DocOther, false
}

// VerificationCategory names the verification record a decision belongs to.
type VerificationCategory string

const (
	CategoryInsurance VerificationCategory = "insurance"
	CategoryEmission  VerificationCategory = "emission"
	CategoryHPG       VerificationCategory = "hpg"
)

// IDType classifies an owner identity document.
type IDType string

const (
	IDDriversLicense IDType = "drivers_license"
	IDPassport       IDType = "passport"
	IDNational       IDType = "national_id"
	IDPostal         IDType = "postal_id"
	IDVoters         IDType = "voters_id"
	IDSSS            IDType = "sss_id"
)
