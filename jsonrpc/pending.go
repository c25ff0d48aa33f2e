package jsonrpc

import (
	"encoding/json"
	"sync"
)

// outcome settles one outbound call.
type outcome struct {
	result json.RawMessage
	err    error
}

// pendingTable correlates outbound requests with their responses. IDs start
// at zero and are never reused for the life of the table.
type pendingTable struct {
	mu     sync.Mutex
	nextID int64
	calls  map[int64]chan outcome
	closed error
}

func newPendingTable() *pendingTable {
	return &pendingTable{calls: make(map[int64]chan outcome)}
}

// add allocates an id and registers its completion channel. The channel is
// registered before the request can be written so a fast response is never
// missed.
func (p *pendingTable) add() (int64, <-chan outcome, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed != nil {
		return 0, nil, p.closed
	}

	id := p.nextID
	p.nextID++

	// Buffered so complete never blocks on a caller that gave up.
	ch := make(chan outcome, 1)
	p.calls[id] = ch
	return id, ch, nil
}

// complete settles the call matching resp.ID and removes it. It reports
// false for ids with no live entry; those responses are dropped.
func (p *pendingTable) complete(resp *Response) bool {
	p.mu.Lock()
	ch, ok := p.calls[resp.ID]
	if ok {
		delete(p.calls, resp.ID)
	}
	p.mu.Unlock()

	if !ok {
		return false
	}

	if resp.Error != nil {
		ch <- outcome{err: &Error{Code: resp.Error.Code, Message: resp.Error.Message}}
	} else {
		ch <- outcome{result: resp.Result}
	}
	return true
}

// remove drops a call without settling it.
func (p *pendingTable) remove(id int64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	_, ok := p.calls[id]
	delete(p.calls, id)
	return ok
}

// failAll rejects every live call with err and refuses new ones. Only the
// first cause is kept.
func (p *pendingTable) failAll(err error) {
	p.mu.Lock()
	if p.closed == nil {
		p.closed = err
	}
	calls := p.calls
	p.calls = make(map[int64]chan outcome)
	p.mu.Unlock()

	for _, ch := range calls {
		ch <- outcome{err: err}
	}
}

// len reports how many calls are awaiting a response.
func (p *pendingTable) len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}
