package models

import (
	"fmt"
	"time"
)

// Calculator types. Modular calculators are linked by ID, monolithic ones
// by slug.
const (
	CalculatorModular    = "modular"
	CalculatorMonolithic = "monolithic"
)

// MaxCalculatorInputs caps InputLength.
const MaxCalculatorInputs = 6

// Unit is a selectable measurement unit for an input or the output.
type Unit struct {
	Label    string `json:"label"`
	Value    string `json:"value"`
	Category string `json:"category"`
}

// InputLabels holds the label shown next to each input and the output.
type InputLabels struct {
	InputOneLabel   string `json:"inputOneLabel,omitempty"`
	InputTwoLabel   string `json:"inputTwoLabel,omitempty"`
	InputThreeLabel string `json:"inputThreeLabel,omitempty"`
	InputFourLabel  string `json:"inputFourLabel,omitempty"`
	InputFiveLabel  string `json:"inputFiveLabel,omitempty"`
	InputSixLabel   string `json:"inputSixLabel,omitempty"`
	OutputLabel     string `json:"outputLabel,omitempty"`
}

// InputSelects describes unit selection for each input and the output.
type InputSelects struct {
	IsUnitSelect bool `json:"isUnitSelect"`

	InputOneSelect        bool   `json:"inputOneSelect"`
	InputOneBaseUnit      *Unit  `json:"inputOneBaseUnit,omitempty"`
	InputOneSelectedUnits []Unit `json:"inputOneSelectedUnits,omitempty"`

	InputTwoSelect        bool   `json:"inputTwoSelect"`
	InputTwoBaseUnit      *Unit  `json:"inputTwoBaseUnit,omitempty"`
	InputTwoSelectedUnits []Unit `json:"inputTwoSelectedUnits,omitempty"`

	InputThreeSelect        bool   `json:"inputThreeSelect"`
	InputThreeBaseUnit      *Unit  `json:"inputThreeBaseUnit,omitempty"`
	InputThreeSelectedUnits []Unit `json:"inputThreeSelectedUnits,omitempty"`

	InputFourSelect        bool   `json:"inputFourSelect"`
	InputFourBaseUnit      *Unit  `json:"inputFourBaseUnit,omitempty"`
	InputFourSelectedUnits []Unit `json:"inputFourSelectedUnits,omitempty"`

	InputFiveSelect        bool   `json:"inputFiveSelect"`
	InputFiveBaseUnit      *Unit  `json:"inputFiveBaseUnit,omitempty"`
	InputFiveSelectedUnits []Unit `json:"inputFiveSelectedUnits,omitempty"`

	InputSixSelect        bool   `json:"inputSixSelect"`
	InputSixBaseUnit      *Unit  `json:"inputSixBaseUnit,omitempty"`
	InputSixSelectedUnits []Unit `json:"inputSixSelectedUnits,omitempty"`

	OutputSelect        bool   `json:"outputSelect"`
	OutputBaseUnit      *Unit  `json:"outputBaseUnit,omitempty"`
	OutputSelectedUnits []Unit `json:"outputSelectedUnits,omitempty"`
}

// Calculator is a user-authored formula with labelled inputs.
// AuthorID is nullable: deleting a user without cascading leaves the
// reference dangling.
type Calculator struct {
	ID               uint             `gorm:"primaryKey" json:"_id"`
	AuthorID         *uint            `gorm:"index" json:"-"`
	Author           *AuthorSummary   `gorm:"foreignKey:AuthorID" json:"author"`
	Title            string           `gorm:"not null" json:"title"`
	Slug             string           `gorm:"uniqueIndex;not null" json:"slug"`
	Description      string           `gorm:"not null" json:"description"`
	Category         string           `gorm:"not null;index" json:"category"`
	Type             string           `gorm:"size:16;not null;default:modular" json:"type"`
	InputLength      int              `json:"inputLength"`
	InputLabels      InputLabels      `gorm:"type:text;serializer:json" json:"inputLabels"`
	InputSelects     InputSelects     `gorm:"type:text;serializer:json" json:"inputSelects"`
	Formula          string           `json:"formula"`
	FormulaVariables []string         `gorm:"type:text;serializer:json" json:"formulaVariables"`
	IsInfoMarkdown   bool             `gorm:"not null;default:false" json:"isInfoMarkdown"`
	Info             string           `gorm:"not null" json:"info"`
	IsVerified       bool             `gorm:"not null;default:false;index" json:"isVerified"`
	SavesCount       int              `gorm:"not null;default:0" json:"-"`
	SavedUsers       []CalculatorSave `gorm:"foreignKey:CalculatorID" json:"savedUsers"`
	CreatedAt        time.Time        `json:"createdAt"`
	UpdatedAt        time.Time        `json:"updatedAt"`
}

// Link is the client route for the calculator.
func (c *Calculator) Link() string {
	if c.Type == CalculatorMonolithic {
		return fmt.Sprintf("/%s/%s", c.Type, c.Slug)
	}
	return fmt.Sprintf("/%s/%d", c.Type, c.ID)
}

// IsAuthoredBy reports whether userID wrote the calculator.
func (c *Calculator) IsAuthoredBy(userID uint) bool {
	return c.AuthorID != nil && *c.AuthorID == userID
}

// CalculatorSave records that a user saved a calculator. It is the single
// source for both Calculator.SavedUsers and a user's saved list.
type CalculatorSave struct {
	ID           uint      `gorm:"primaryKey" json:"-"`
	CalculatorID uint      `gorm:"not null;uniqueIndex:idx_calculator_save" json:"-"`
	UserID       uint      `gorm:"not null;uniqueIndex:idx_calculator_save;index" json:"userId"`
	CreatedAt    time.Time `json:"-"`
}
