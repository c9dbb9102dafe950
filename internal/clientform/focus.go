package clientform

// Field names a focusable control of the form.
type Field string

// Focusable controls in tab order.
const (
	FieldName    Field = "name"
	FieldPhone   Field = "phone"
	FieldAddress Field = "address"
	FieldSearch  Field = "search"
)

// Navigation keys understood by Next.
const (
	KeyEnter     = "Enter"
	KeyArrowDown = "ArrowDown"
	KeyArrowUp   = "ArrowUp"
)

// Next returns the field that should receive focus after key is pressed in
// field. Enter only leaves the phone field when the number is valid.
func Next(field Field, key string, phoneValid bool) Field {
	switch key {
	case KeyEnter:
		switch field {
		case FieldName:
			return FieldPhone
		case FieldPhone:
			if phoneValid {
				return FieldAddress
			}
		}
	case KeyArrowDown:
		switch field {
		case FieldName:
			return FieldPhone
		case FieldPhone:
			return FieldAddress
		}
	case KeyArrowUp:
		switch field {
		case FieldPhone:
			return FieldName
		case FieldAddress:
			return FieldPhone
		case FieldSearch:
			return FieldAddress
		}
	}
	return field
}

// Nav is the focus map of one field, rendered into data attributes for the
// page script.
type Nav struct {
	Enter Field
	Down  Field
	Up    Field
	// EnterNeedsValidPhone tells the script to validate before moving on Enter.
	EnterNeedsValidPhone bool
}

// Navigation builds the focus map for every field.
func Navigation() map[Field]Nav {
	out := make(map[Field]Nav, 4)
	for _, f := range []Field{FieldName, FieldPhone, FieldAddress, FieldSearch} {
		out[f] = Nav{
			Enter:                Next(f, KeyEnter, true),
			Down:                 Next(f, KeyArrowDown, true),
			Up:                   Next(f, KeyArrowUp, true),
			EnterNeedsValidPhone: Next(f, KeyEnter, false) != Next(f, KeyEnter, true),
		}
	}
	return out
}
