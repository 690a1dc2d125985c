package agents

import (
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scriba/internal/interfaces"
)

// NewAgentSet wires every generation port against one LLM service.
func NewAgentSet(llm interfaces.LLMService, logger arbor.ILogger) *interfaces.AgentSet {
	return &interfaces.AgentSet{
		Researcher:  NewResearchAgent(llm, logger),
		Data:        NewCSVSummarizer(logger),
		Writer:      NewWriterAgent(llm, logger),
		Reviewer:    NewReviewerAgent(llm, logger),
		Diagrammer:  NewDiagramAgent(llm, logger),
		Repairer:    NewRepairAgent(llm, logger),
		Regenerator: NewSectionAgent(llm, logger),
	}
}
