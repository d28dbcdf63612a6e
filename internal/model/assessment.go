package model

import "time"

// Assessment is a saved scoring run, kept for the history command.
type Assessment struct {
	ID            string     `json:"id"`
	Identifier    string     `json:"identifier"`
	ProductName   string     `json:"product_name"`
	Source        string     `json:"source"`
	UserAllergens []string   `json:"user_allergens"`
	FinalScore    float64    `json:"final_score"`
	Result        RiskResult `json:"result"`
	CreatedAt     time.Time  `json:"created_at"`
}
