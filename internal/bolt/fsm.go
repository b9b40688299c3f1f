package bolt

import "github.com/boltstream/gobolt/internal/errorutil"

// state is the connection FSM from spec §4.3.
type state int

const (
	stateDisconnected state = iota
	stateNegotiating
	stateAuthenticating
	stateReady
	stateStreaming
	stateTxReady
	stateTxStreaming
	stateFailed
	stateInterrupted
	stateDefunct
)

func (s state) String() string {
	switch s {
	case stateDisconnected:
		return "DISCONNECTED"
	case stateNegotiating:
		return "NEGOTIATING"
	case stateAuthenticating:
		return "AUTHENTICATING"
	case stateReady:
		return "READY"
	case stateStreaming:
		return "STREAMING"
	case stateTxReady:
		return "TX_READY"
	case stateTxStreaming:
		return "TX_STREAMING"
	case stateFailed:
		return "FAILED"
	case stateInterrupted:
		return "INTERRUPTED"
	case stateDefunct:
		return "DEFUNCT"
	}
	return "UNKNOWN"
}

// canSend validates a client-initiated transition before a message is ever
// written to the wire (spec §4.3). It rejects illegal transitions locally
// rather than discovering them from a server FAILURE.
func canSend(s state, msg byte) error {
	if s == stateDefunct {
		return errorutil.NewProtocolError("connection is defunct, cannot send 0x%02X", msg)
	}
	if s == stateFailed {
		if msg == msgReset || msg == msgGoodbye {
			return nil
		}
		return errorutil.NewProtocolError("connection is FAILED, only RESET/GOODBYE permitted, got 0x%02X", msg)
	}
	switch msg {
	case msgGoodbye, msgReset:
		return nil // permitted from almost any non-defunct state
	case msgHello, msgLogon, msgLogoff:
		return nil
	case msgRun:
		if s == stateReady || s == stateTxReady {
			return nil
		}
	case msgDiscard, msgPull:
		if s == stateStreaming || s == stateTxStreaming {
			return nil
		}
	case msgBegin, msgRoute:
		if s == stateReady {
			return nil
		}
	case msgCommit, msgRollback:
		if s == stateTxReady {
			return nil
		}
	}
	return errorutil.NewProtocolError("illegal transition: cannot send 0x%02X from state %s", msg, s)
}

// next computes the post-send, pre-reply state; the reply (SUCCESS with
// has_more, FAILURE, ...) may further adjust it via applyReply.
func next(s state, msg byte) state {
	switch msg {
	case msgRun:
		if s == stateTxReady {
			return stateTxStreaming
		}
		return stateStreaming
	case msgBegin:
		return stateTxReady
	case msgCommit, msgRollback:
		return stateReady
	case msgGoodbye:
		return stateDisconnected
	}
	return s
}

// applyReply folds a server reply into the FSM (spec §4.3).
func applyReply(s state, msg byte, hasMore bool) state {
	switch msg {
	case msgFailure:
		return stateFailed
	case msgSuccess:
		if s == stateStreaming || s == stateTxStreaming {
			if hasMore {
				return s
			}
			if s == stateTxStreaming {
				return stateTxReady
			}
			return stateReady
		}
		if s == stateFailed { // RESET's SUCCESS
			return stateReady
		}
		return s
	}
	return s
}
