package parse

import (
	"encoding/json"
	"sort"
)

// Field names a value the parser knows how to extract.
type Field string

const (
	FieldPlateNumber      Field = "plateNumber"
	FieldEngineNumber     Field = "engineNumber"
	FieldChassisNumber    Field = "chassisNumber"
	FieldVIN              Field = "vin"
	FieldMake             Field = "make"
	FieldModel            Field = "model"
	FieldSeries           Field = "series"
	FieldYear             Field = "year"
	FieldYearModel        Field = "yearModel"
	FieldColor            Field = "color"
	FieldBodyType         Field = "bodyType"
	FieldFuelType         Field = "fuelType"
	FieldOwnerName        Field = "ownerName"
	FieldAddress          Field = "address"
	FieldORNumber         Field = "orNumber"
	FieldCRNumber         Field = "crNumber"
	FieldMVFileNumber     Field = "mvFileNumber"
	FieldRegistrationDate Field = "registrationDate"

	FieldPolicyNumber     Field = "policyNumber"
	FieldInsuranceCompany Field = "insuranceCompany"
	FieldCoverageType     Field = "coverageType"
	FieldIssueDate        Field = "issueDate"
	FieldExpiryDate       Field = "expiryDate"

	FieldCertificateNumber Field = "certificateNumber"
	FieldTestDate          Field = "testDate"
	FieldTestingCenter     Field = "testingCenter"
	FieldTestResult        Field = "testResult"
	FieldCO                Field = "co"
	FieldHC                Field = "hc"
	FieldSmoke             Field = "smoke"

	FieldIDType    Field = "idType"
	FieldIDNumber  Field = "idNumber"
	FieldBirthDate Field = "birthDate"

	FieldInvoiceNumber Field = "invoiceNumber"
	FieldInvoiceDate   Field = "invoiceDate"
	FieldDealerName    Field = "dealerName"
	FieldPrice         Field = "price"

	FieldCSRNumber       Field = "csrNumber"
	FieldClearanceNumber Field = "clearanceNumber"
	FieldRemarks         Field = "remarks"
)

// Fields is the optional-field record produced by a parse. A field that was
// not found is absent; a field found with an empty value (a plate "to be
// issued") is present with "". Numeric readings live apart from text values.
type Fields struct {
	text       map[Field]string
	numbers    map[Field]float64
	confidence map[Field]float64
}

// NewFields builds a Fields from plain values, mostly for callers and tests
// that stage claimed data.
func NewFields(values map[Field]string) Fields {
	var f Fields
	for k, v := range values {
		f.Set(k, v)
	}
	return f
}

// Get returns the text value of k and whether it is present.
func (f Fields) Get(k Field) (string, bool) {
	v, ok := f.text[k]
	return v, ok
}

// Value returns the text value of k, or "" when absent.
func (f Fields) Value(k Field) string {
	return f.text[k]
}

// Has reports presence, including present-but-empty values.
func (f Fields) Has(k Field) bool {
	_, ok := f.text[k]
	return ok
}

// NonEmpty reports whether k is present with a non-empty value.
func (f Fields) NonEmpty(k Field) bool {
	return f.text[k] != ""
}

func (f *Fields) Set(k Field, v string) {
	if f.text == nil {
		f.text = make(map[Field]string)
	}
	f.text[k] = v
}

// setIfAbsent implements first-match-wins.
func (f *Fields) setIfAbsent(k Field, v string) bool {
	if f.Has(k) {
		return false
	}
	f.Set(k, v)
	return true
}

func (f Fields) Number(k Field) (float64, bool) {
	v, ok := f.numbers[k]
	return v, ok
}

func (f *Fields) SetNumber(k Field, v float64) {
	if f.numbers == nil {
		f.numbers = make(map[Field]float64)
	}
	f.numbers[k] = v
}

// Confidence returns the extraction confidence recorded for k, if any.
func (f Fields) Confidence(k Field) (float64, bool) {
	v, ok := f.confidence[k]
	return v, ok
}

func (f *Fields) SetConfidence(k Field, v float64) {
	if f.confidence == nil {
		f.confidence = make(map[Field]float64)
	}
	f.confidence[k] = v
}

// Len counts present text and numeric fields.
func (f Fields) Len() int {
	return len(f.text) + len(f.numbers)
}

// Keys lists present field names in sorted order.
func (f Fields) Keys() []Field {
	keys := make([]Field, 0, f.Len())
	for k := range f.text {
		keys = append(keys, k)
	}
	for k := range f.numbers {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Map flattens the record into a plain map; confidences use the key "<field>Confidence".
func (f Fields) Map() map[string]any {
	out := make(map[string]any, f.Len()+len(f.confidence))
	for k, v := range f.text {
		out[string(k)] = v
	}
	for k, v := range f.numbers {
		out[string(k)] = v
	}
	for k, v := range f.confidence {
		out[string(k)+"Confidence"] = v
	}
	return out
}

func (f Fields) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.Map())
}
