package mediation

import (
	"fmt"
	"strings"

	"github.com/harmonia-app/harmonia/pkg/completion"
	"github.com/harmonia-app/harmonia/pkg/models"
)

// ResultSchema is the fixed response schema for a mediation analysis.
func ResultSchema() *completion.Schema {
	return &completion.Schema{
		Name: "mediation_analysis",
		Properties: map[string]completion.Property{
			"generated_summary": {
				Type:        "string",
				Description: "An objective presentation of the context and background of the situation, without judgment.",
			},
			"analysis": {
				Type:        "string",
				Description: "Identification of possible sources of conflict, misunderstanding, or tension.",
			},
			"objective_evaluation": {
				Type:        "string",
				Description: "A balanced summary of the situation and recommendations for resolving it constructively.",
			},
		},
		Required: []string{"generated_summary", "analysis", "objective_evaluation"},
	}
}

// BuildPrompt assembles the deterministic mediation prompt for an event
// description and its participant characters. Participants are labeled
// sequentially (A, B, C, ...) in the order given.
func BuildPrompt(description string, participants []models.Character) string {
	details := make([]string, 0, len(participants))
	for i, char := range participants {
		details = append(details, fmt.Sprintf(`#### Participant %c
- **Name:** %s
- **Role:** %s
- **Description:** %s
- **Traits:** %s
- **Motivations:** %s`,
			rune('A'+i), char.Name, char.Role, char.Description,
			strings.Join(char.Traits, ", "), strings.Join(char.Motivations, ", ")))
	}

	var b strings.Builder
	b.WriteString(`# Mediator role

You are an experienced and impartial mediator. Your task is to:
- analyze the described situation,
- present each person's perspective objectively,
- identify sources of conflict or tension,
- propose possible resolutions in a spirit of understanding and cooperation.
---
## Input
### Situation description
`)
	b.WriteString(description)
	b.WriteString(`
---
### Participants
`)
	b.WriteString(strings.Join(details, "\n\n"))
	b.WriteString(`
---
## Mediator instructions
Based on the information above, perform the following steps:
1. **Situation summary:**
   Present the context and background of the situation objectively, without judgment.
2. **Participant perspectives:**
   For each participant:
   - Describe how they perceive the situation.
   - What emotions and needs may lie behind it.
   - What goals or beliefs drive their behavior.
3. **Mediator analysis:**
   - Identify possible sources of conflict, misunderstanding, or tension.
   - Identify differences in communication, values, or needs.
4. **Objective evaluation:**
   - A balanced summary of the situation.
   - What each side could understand better.
   - What actions could help resolve the situation constructively.
---
**Response style:**
- Tone: neutral, empathetic, professional.
- Form: factual and well organized.
- Do not judge people; analyze behavior and communication.`)

	return b.String()
}
