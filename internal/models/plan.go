package models

import (
	"time"

	"gorm.io/datatypes"
)

type SupplementCategory string

const (
	CategoryProtein     SupplementCategory = "Protein"
	CategoryRecovery    SupplementCategory = "Recovery"
	CategoryPerformance SupplementCategory = "Performance"
	CategoryHealth      SupplementCategory = "Health"
)

type Priority string

const (
	PriorityHigh   Priority = "High"
	PriorityMedium Priority = "Medium"
	PriorityLow    Priority = "Low"
)

type Supplement struct {
	Name      string             `json:"name"`
	Category  SupplementCategory `json:"category"`
	Reason    string             `json:"reason"`
	Usage     string             `json:"usage"`
	Dosage    string             `json:"dosage"`
	Mechanism string             `json:"mechanism,omitempty"`
	Priority  Priority           `json:"priority"`
}

type Macros struct {
	Protein float64 `json:"protein"`
	Carbs   float64 `json:"carbs"`
	Fats    float64 `json:"fats"`
}

type UserData struct {
	Weight float64 `json:"weight"`
	Height float64 `json:"height"`
	Age    float64 `json:"age"`
	Gender string  `json:"gender"`
}

// Plan is one generated assessment result. Stored plans are never updated;
// saving again appends a new row.
type Plan struct {
	ID               uint                            `gorm:"primaryKey" json:"-"`
	UserID           string                          `gorm:"index;type:varchar(36)" json:"-"`
	BodyCode         string                          `json:"bodyCode"`
	AlgorithmVersion string                          `json:"algorithmVersion"`
	Calories         float64                         `json:"calories"`
	Macros           Macros                          `gorm:"embedded;embeddedPrefix:macro_" json:"macros"`
	Goal             string                          `json:"goal,omitempty"`
	PhoneNumber      string                          `json:"phoneNumber,omitempty"`
	UserData         datatypes.JSONType[UserData]    `gorm:"type:jsonb" json:"userData"`
	Answers          StringMap                       `gorm:"type:jsonb" json:"answers,omitempty"`
	Supplements      datatypes.JSONSlice[Supplement] `gorm:"type:jsonb" json:"supplements"`
	Vitamins         StringArray                     `gorm:"type:jsonb" json:"vitamins"`
	Explanation      string                          `json:"explanation"`
	MealSuggestions  StringArray                     `gorm:"type:jsonb" json:"mealSuggestions"`
	Date             *time.Time                      `gorm:"index" json:"date,omitempty"`
}

func (p Plan) Clone() Plan {
	out := p
	if p.Answers != nil {
		out.Answers = make(StringMap, len(p.Answers))
		for k, v := range p.Answers {
			out.Answers[k] = v
		}
	}
	if p.Supplements != nil {
		out.Supplements = append(datatypes.JSONSlice[Supplement](nil), p.Supplements...)
	}
	out.Vitamins = append(StringArray(nil), p.Vitamins...)
	out.MealSuggestions = append(StringArray(nil), p.MealSuggestions...)
	if p.Date != nil {
		d := *p.Date
		out.Date = &d
	}
	return out
}
