package models

import (
	"strings"
	"time"
)

type PropertyType string

const (
	PropertyHouse      PropertyType = "house"
	PropertyApartment  PropertyType = "apartment"
	PropertyDuplex     PropertyType = "duplex"
	PropertyTownhouse  PropertyType = "townhouse"
	PropertyCommercial PropertyType = "commercial"
)

var PropertyTypes = []PropertyType{PropertyHouse, PropertyApartment, PropertyDuplex, PropertyTownhouse, PropertyCommercial}

// ParsePropertyType matches s against the known types ignoring case and
// surrounding whitespace, so legacy values like "House" are accepted.
func ParsePropertyType(s string) (PropertyType, bool) {
	normalized := PropertyType(strings.ToLower(strings.TrimSpace(s)))
	for _, t := range PropertyTypes {
		if normalized == t {
			return t, true
		}
	}
	return "", false
}

// Property is a rental listing. Address is unique by convention only.
type Property struct {
	ID          string       `json:"_id" bson:"-"`
	Address     string       `json:"address" bson:"address"`
	Type        PropertyType `json:"type" bson:"type"`
	Bedrooms    int          `json:"bedrooms" bson:"bedrooms"`
	Bathrooms   int          `json:"bathrooms" bson:"bathrooms"`
	RentPrice   float64      `json:"rent_price" bson:"rent_price"`
	Description string       `json:"description,omitempty" bson:"description,omitempty"`
	CreatedAt   time.Time    `json:"created_at" bson:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at" bson:"updated_at"`
	Extra       Fields       `json:"-" bson:"-"`
}

// PropertyFields are the keys Property declares.
var PropertyFields = newFieldSet("_id", "address", "type", "bedrooms", "bathrooms",
	"rent_price", "description", "created_at", "updated_at")

func (p Property) MarshalJSON() ([]byte, error) {
	type plain Property
	return marshalRecord(plain(p), p.Extra)
}

func (p *Property) UnmarshalJSON(data []byte) error {
	type plain Property
	var v plain
	extra, err := unmarshalRecord(data, &v, PropertyFields)
	if err != nil {
		return err
	}
	*p = Property(v)
	p.Extra = extra
	return nil
}
