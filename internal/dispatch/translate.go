package dispatch

import "mimic-assistant/internal/domain"

// toTurns converts a transcript into the endpoint's role vocabulary. Leading
// assistant entries (the seeded greeting) are dropped because the exchange
// must open with a user turn.
func toTurns(log []domain.Message) []domain.Turn {
	start := 0
	for start < len(log) && log[start].Role != domain.RoleUser {
		start++
	}
	turns := make([]domain.Turn, 0, len(log)-start)
	for _, m := range log[start:] {
		role := domain.TurnUser
		if m.Role == domain.RoleAssistant {
			role = domain.TurnModel
		}
		turns = append(turns, domain.Turn{Role: role, Text: m.Content})
	}
	return turns
}
