package services

import "google.golang.org/genai"

// AgentTools defines the functions available to the repair agent.
func AgentTools() []*genai.Tool {
	return []*genai.Tool{
		{
			FunctionDeclarations: []*genai.FunctionDeclaration{
				{
					Name:        "findClosestMatch",
					Description: "Find the most relevant repair guide in the knowledge base for an appliance or issue. Returns the guide's metadata when a match passes the similarity threshold, or an explicit rejection message otherwise.",
					Parameters: &genai.Schema{
						Type: genai.TypeObject,
						Properties: map[string]*genai.Schema{
							"query": {
								Type:        genai.TypeString,
								Description: "A concise description of the appliance and the issue, e.g. 'LG washing machine OE error'.",
							},
						},
						Required: []string{"query"},
					},
				},
				{
					Name:        "getChatHistory",
					Description: "Retrieve the most recent conversation turns for the given user. Use this when the question is a follow-up or references prior messages.",
					Parameters: &genai.Schema{
						Type: genai.TypeObject,
						Properties: map[string]*genai.Schema{
							"user_id": {
								Type:        genai.TypeString,
								Description: "The identifier of the user whose history should be retrieved.",
							},
						},
						Required: []string{"user_id"},
					},
				},
				{
					Name:        "acceptGuideMatch",
					Description: "Accept a guide returned by findClosestMatch as the answer to the user's problem. Call this only after inspecting the guide's title for topical fit. This ends the conversation turn.",
					Parameters: &genai.Schema{
						Type: genai.TypeObject,
						Properties: map[string]*genai.Schema{
							"filename": {
								Type:        genai.TypeString,
								Description: "The filename from the matched guide's metadata, exactly as returned.",
							},
							"title": {
								Type:        genai.TypeString,
								Description: "The title from the matched guide's metadata, exactly as returned.",
							},
						},
						Required: []string{"filename", "title"},
					},
				},
			},
		},
	}
}
