package eligibility

import "fmt"

// Field identifies a private attribute a bin can classify.
type Field int

const (
	FieldAge Field = iota + 1
	FieldGender
	FieldHeight
	FieldWeight
	FieldBMI
	FieldSmokingStatus
	FieldDiabetesStatus
	FieldHbA1c
	FieldSystolicBP
	FieldDiastolicBP
	FieldCholesterol
	FieldActivityLevel
	FieldRegion
)

var fieldNames = map[Field]string{
	FieldAge:            "age",
	FieldGender:         "gender",
	FieldHeight:         "height",
	FieldWeight:         "weight",
	FieldBMI:            "bmi",
	FieldSmokingStatus:  "smokingStatus",
	FieldDiabetesStatus: "diabetesStatus",
	FieldHbA1c:          "hba1c",
	FieldSystolicBP:     "systolicBp",
	FieldDiastolicBP:    "diastolicBp",
	FieldCholesterol:    "cholesterol",
	FieldActivityLevel:  "activityLevel",
	FieldRegion:         "region",
}

var fieldsByName = func() map[string]Field {
	m := make(map[string]Field, len(fieldNames))
	for f, name := range fieldNames {
		m[name] = f
	}
	return m
}()

// ParseField resolves a criteria field name. Unknown names are an error.
func ParseField(name string) (Field, error) {
	f, ok := fieldsByName[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownField, name)
	}
	return f, nil
}

// Valid reports whether f is a known field
func (f Field) Valid() bool {
	_, ok := fieldNames[f]
	return ok
}

func (f Field) String() string {
	if name, ok := fieldNames[f]; ok {
		return name
	}
	return fmt.Sprintf("Field(%d)", int(f))
}

// MarshalText encodes the field by name, which also makes it usable as a JSON map key.
func (f Field) MarshalText() ([]byte, error) {
	if !f.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownField, int(f))
	}
	return []byte(f.String()), nil
}

// UnmarshalText decodes a field name, rejecting unknown names.
func (f *Field) UnmarshalText(text []byte) error {
	parsed, err := ParseField(string(text))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}
