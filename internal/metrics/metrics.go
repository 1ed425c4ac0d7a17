// README: Dispatch metric sinks (Prometheus and no-op).
package metrics

// Recorder receives dispatch engine events.
type Recorder interface {
	// RoutingDecision records one routing attempt. trigger is "create" or
	// "timeout"; outcome is "routed", "none" or "no_origin".
	RoutingDecision(trigger, outcome string)
	// Transition records a lifecycle action and whether it was applied.
	Transition(action, result string)
	// EnrichmentCall records one call to the enrichment collaborator.
	EnrichmentCall(path, outcome string)
}

// Nop discards every event.
type Nop struct{}

func (Nop) RoutingDecision(string, string) {}
func (Nop) Transition(string, string)      {}
func (Nop) EnrichmentCall(string, string)  {}
