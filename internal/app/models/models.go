package models

// RoleType is the flat role enum stored on a user's profile
type RoleType string

const (
	RoleAdmin     RoleType = "AD"
	RoleUser      RoleType = "US"
	RoleLibrarian RoleType = "LB"
)

// IsValid reports whether r is one of the known roles
func (r RoleType) IsValid() bool {
	switch r {
	case RoleAdmin, RoleUser, RoleLibrarian:
		return true
	}
	return false
}

// Display returns the human-readable role label
func (r RoleType) Display() string {
	switch r {
	case RoleAdmin:
		return "Admin"
	case RoleLibrarian:
		return "Librarian"
	case RoleUser:
		return "User"
	}
	return string(r)
}

// Category is the fixed set of catalog categories
type Category string

const (
	CategoryCooking        Category = "CK"
	CategoryCrime          Category = "CR"
	CategoryMystery        Category = "MY"
	CategoryScienceFiction Category = "SF"
	CategoryFantasy        Category = "FAN"
	CategoryHistory        Category = "HIS"
	CategoryRomance        Category = "ROM"
	CategoryTextbook       Category = "TXT"
)

var categoryLabels = map[Category]string{
	CategoryCooking:        "Cooking",
	CategoryCrime:          "Crime",
	CategoryMystery:        "Mystery",
	CategoryScienceFiction: "Science Fiction",
	CategoryFantasy:        "Fantasy",
	CategoryHistory:        "History",
	CategoryRomance:        "Romance",
	CategoryTextbook:       "Textbook",
}

// IsValid reports whether c is a known category
func (c Category) IsValid() bool {
	_, ok := categoryLabels[c]
	return ok
}

// Display returns the human-readable category label
func (c Category) Display() string {
	if label, ok := categoryLabels[c]; ok {
		return label
	}
	return string(c)
}

// Condition is the physical state of a copy
type Condition string

const (
	ConditionNew  Condition = "NW"
	ConditionGood Condition = "GD"
	ConditionFair Condition = "FR"
	ConditionPoor Condition = "PO"
)

var conditionLabels = map[Condition]string{
	ConditionNew:  "New",
	ConditionGood: "Good",
	ConditionFair: "Fair",
	ConditionPoor: "Poor",
}

// IsValid reports whether c is a known condition
func (c Condition) IsValid() bool {
	_, ok := conditionLabels[c]
	return ok
}

// Display returns the human-readable condition label
func (c Condition) Display() string {
	if label, ok := conditionLabels[c]; ok {
		return label
	}
	return string(c)
}
