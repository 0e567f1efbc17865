package policystore

import "time"

// PolicySetModel is a named collection of path rules: one semihosting
// session (or session template) binds to exactly one policy set.
type PolicySetModel struct {
	ID        string    `gorm:"primaryKey;size:36"`
	Name      string    `gorm:"uniqueIndex;not null;size:255"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (PolicySetModel) TableName() string { return "policy_sets" }

// PathRuleModel is one row of internal/sandbox.PathRule, persisted under a
// policy set. Rules are ordered by ID (insertion order), matching the
// first-match-wins semantics internal/sandbox.validatePath expects.
type PathRuleModel struct {
	ID          uint   `gorm:"primaryKey;autoIncrement"`
	PolicySetID string `gorm:"not null;size:36;index"`
	Prefix      string `gorm:"not null;size:4096"`
	AllowWrite  bool   `gorm:"not null;default:false"`
}

func (PathRuleModel) TableName() string { return "path_rules" }

// AllModels lists every model this package owns, for AutoMigrate.
func AllModels() []any {
	return []any{&PolicySetModel{}, &PathRuleModel{}}
}
