package gossip

import "github.com/Roemello4/holochain/gossip/bloom"

// MessageType tags the variant carried by a wire frame.
type MessageType uint8

const (
	// InitiateMsg opens a round; the sender advertises the union of its
	// local agents' arcs and their identities.
	InitiateMsg MessageType = iota + 1
	// AcceptMsg responds to Initiate, echoing the common arc set.
	AcceptMsg
	// AgentsMsg carries a bloom filter over agent-info signatures the
	// sender holds within the common arc set.
	AgentsMsg
	// MissingAgentsMsg carries full agent-info records the recipient
	// asked for.
	MissingAgentsMsg
	// OpsMsg carries a bloom filter over op hashes; Finished is true on
	// the last message of a bloom exchange.
	OpsMsg
	// MissingOpsMsg carries full op payloads the recipient asked for;
	// Finished is true on the last batch for a given bloom.
	MissingOpsMsg
)

func (t MessageType) String() string {
	switch t {
	case InitiateMsg:
		return "Initiate"
	case AcceptMsg:
		return "Accept"
	case AgentsMsg:
		return "Agents"
	case MissingAgentsMsg:
		return "MissingAgents"
	case OpsMsg:
		return "Ops"
	case MissingOpsMsg:
		return "MissingOps"
	default:
		return "Unknown"
	}
}

// Message is implemented by all six wire message payloads.
type Message interface {
	Type() MessageType
}

// Initiate opens a round.
type Initiate struct {
	IntendedArcSet ArcSet
	AgentList      []AgentInfoSigned
}

func (Initiate) Type() MessageType { return InitiateMsg }

// Accept responds to Initiate with the computed common arc set.
type Accept struct {
	IntendedArcSet ArcSet
	AgentList      []AgentInfoSigned
}

func (Accept) Type() MessageType { return AcceptMsg }

// Agents carries a bloom filter over agent-info signatures.
type Agents struct {
	Bloom *bloom.Filter
}

func (Agents) Type() MessageType { return AgentsMsg }

// MissingAgents carries full agent-info records.
type MissingAgents struct {
	Agents []AgentInfoSigned
}

func (MissingAgents) Type() MessageType { return MissingAgentsMsg }

// Ops carries a bloom filter over op hashes within the common arc set and
// an implicit time window.
type Ops struct {
	MissingHashes *bloom.Filter
	Finished      bool
}

func (Ops) Type() MessageType { return OpsMsg }

// OpPayload is one op's content address plus its bytes.
type OpPayload struct {
	Hash OpHash
	Data []byte
}

// MissingOps carries full op payloads the recipient asked for.
type MissingOps struct {
	Ops      []OpPayload
	Finished bool
}

func (MissingOps) Type() MessageType { return MissingOpsMsg }
