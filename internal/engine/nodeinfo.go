package engine

import "github.com/actionfleet/actionfleet/internal/executor"

// NodeInfo is the payload delivered on EvComplete for a single node's
// completion within a running action, mirroring ev_hup's (node, buffer,
// retcode) triple from the underlying node executor.
type NodeInfo struct {
	Node       string
	Command    string
	NodeBuffer []byte
	ExitCode   int
}

func nodeInfoFromWorker(w executor.Worker) NodeInfo {
	node, buf := w.LastRead()
	_, code := w.LastRetcode()
	return NodeInfo{Node: node, Command: w.Command(), NodeBuffer: buf, ExitCode: code}
}
