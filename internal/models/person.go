package models

// Level is a person's organizational level.
type Level string

const (
	LevelJunior  Level = "Jr"
	LevelSenior  Level = "Sr"
	LevelLead    Level = "TL"
	LevelManager Level = "Mgr"
)

// ValidLevels is the set of all valid organizational levels.
var ValidLevels = []Level{
	LevelJunior,
	LevelSenior,
	LevelLead,
	LevelManager,
}

// IsValid returns true if the level is recognized.
func (l Level) IsValid() bool {
	for _, v := range ValidLevels {
		if l == v {
			return true
		}
	}
	return false
}

// Person is a member of the generated organization.
type Person struct {
	PersonID  string   `json:"person_id"`
	Name      string   `json:"name"`
	Role      string   `json:"role"`
	Level     Level    `json:"level"`
	TeamID    string   `json:"team_id"`
	ManagerID string   `json:"manager_id,omitempty"`
	Skills    []string `json:"skills"`
	Location  string   `json:"location"`
}

// Team groups persons via their team_id back-reference.
type Team struct {
	TeamID string `json:"team_id"`
	Name   string `json:"name"`
}
