package turn

import "github.com/finchat/finchat/generator"

// Node names the state-machine states. Grading is a transient decision
// between retrieve and its successor, not a node of its own.
type Node string

const (
	NodeStart    Node = "start"
	NodeAgent    Node = "agent"
	NodeRetrieve Node = "retrieve"
	NodeRewrite  Node = "rewrite"
	NodeGenerate Node = "generate"
	NodeEnd      Node = "end"
)

// Verdict is the grader's closed two-value outcome. Any grader output
// other than an exact "yes" maps to VerdictNotRelevant.
type Verdict string

const (
	VerdictRelevant    Verdict = "relevant"
	VerdictNotRelevant Verdict = "not_relevant"
)

// State is the unit of work passed through one turn: the thread's message
// sequence plus transient routing data.
type State struct {
	Messages []generator.Message
	Verdict  Verdict
	Rewrites int
}

// Step is one executed node together with a snapshot of the message
// sequence after that node ran. The caller persists steps as checkpoints
// once the turn succeeds.
type Step struct {
	Node     Node
	Messages []generator.Message
}

// Result is the outcome of a completed turn.
type Result struct {
	Messages []generator.Message
	Answer   string
	Trace    []Step
}

func snapshot(messages []generator.Message) []generator.Message {
	cpy := make([]generator.Message, len(messages))
	copy(cpy, messages)
	return cpy
}
