package service

import "surajya/models"

// Classification is the initial placement of a new grievance.
type Classification struct {
	Priority      int
	AssignedLevel int
	AutoEscalated bool
}

// Classify derives priority and starting level from the category's rule.
//
// Level decision, first match wins:
//   - priority >= 9: level 3, auto-escalated
//   - priority 7-8:  level 2
//   - otherwise:     level 1
//
// Only the base priority is consulted. Classification happens once, before
// the grievance is first written; it is never re-run.
func Classify(g *models.Grievance, rule *models.PriorityRule) Classification {
	priority := models.DefaultBasePriority
	if rule != nil {
		priority = rule.BasePriority
	}
	switch {
	case priority >= 9:
		return Classification{Priority: priority, AssignedLevel: models.LevelThree, AutoEscalated: true}
	case priority >= 7:
		return Classification{Priority: priority, AssignedLevel: models.LevelTwo}
	default:
		return Classification{Priority: priority, AssignedLevel: models.LevelOne}
	}
}
