package redbdriver

import (
	"context"

	"github.com/redbco/redb-driver-go/internal/cluster"
	"github.com/redbco/redb-driver-go/internal/common"
	"github.com/redbco/redb-driver-go/internal/driererr"
	"github.com/redbco/redb-driver-go/internal/transaction"
	"github.com/redbco/redb-driver-go/internal/wire"
	"github.com/redbco/redb-driver-go/query"
)

// Type is the transaction kind (spec §3 "Transaction.type").
type Type = wire.TransactionType

const (
	Read   = wire.TransactionRead
	Write  = wire.TransactionWrite
	Schema = wire.TransactionSchema
)

// Transaction is one open transaction stream (spec §3 "Transaction",
// §4.J "Transaction::{query, analyze, commit, rollback}").
type Transaction struct {
	d      *Driver
	tx     *transaction.Transmitter
	dbName string
	typ    Type
}

// Transaction opens a new transaction against dbName (spec §4.J
// "transaction(db_name, type, options)"). Routing always targets the
// primary: writes and schema changes require it, and reads use the
// primary too since a transaction pins one replica for its whole
// lifetime rather than re-routing mid-stream.
func (d *Driver) Transaction(ctx context.Context, dbName string, typ Type) (*Transaction, error) {
	ch, err := d.conn.Route(ctx, cluster.Strong())
	if err != nil {
		return nil, err
	}

	if d.streamDialer == nil {
		return nil, driererr.New(driererr.KindConnectionFailed, "no stream dialer configured")
	}
	stream, err := d.streamDialer(ctx, ch)
	if err != nil {
		return nil, driererr.Wrap(driererr.KindConnectionFailed, err, "failed to open transaction stream")
	}

	openReq := wire.TransactionOpenReq{
		Database:             dbName,
		Type:                 typ,
		NetworkLatencyMillis: ch.LatencyMillis(),
	}

	tx, err := transaction.Open(ctx, stream, common.NewRequestID(), openReq, d.opts, d.logger)
	if err != nil {
		return nil, err
	}

	t := &Transaction{d: d, tx: tx, dbName: dbName, typ: typ}
	d.trackTransaction(t)
	return t, nil
}

// IsOpen reports whether the transaction still accepts operations.
func (t *Transaction) IsOpen() bool {
	return t.tx.IsOpen()
}

// Query executes a data or schema query, returning a row iterator (spec
// §4.J "Transaction::query").
func (t *Transaction) Query(ctx context.Context, queryText string) (*ResultStream, error) {
	it, err := t.tx.OpenStream(ctx, wire.QueryRequest{QueryText: queryText})
	if err != nil {
		return nil, err
	}
	return &ResultStream{it: it}, nil
}

// Analyze requests static analysis of a query without executing it,
// returning the analyzed-query model (spec §4.J "Transaction::analyze",
// §4.I).
func (t *Transaction) Analyze(ctx context.Context, queryText string) (*query.AnalyzedQuery, error) {
	payload, err := t.tx.SendUnary(ctx, wire.AnalyzeRequest{QueryText: queryText})
	if err != nil {
		return nil, err
	}
	spec, ok := payload.(query.AnalyzedQuerySpec)
	if !ok {
		return nil, driererr.New(driererr.KindUnexpectedResponse, "unexpected reply to AnalyzeRequest")
	}
	return query.Build(spec)
}

// Commit commits the transaction.
func (t *Transaction) Commit(ctx context.Context) error {
	_, err := t.tx.SendUnary(ctx, wire.CommitRequest{})
	closeErr := t.tx.Close(true, nil)
	t.d.untrackTransaction(t)
	if err != nil {
		return err
	}
	return closeErr
}

// Rollback rolls back the transaction.
func (t *Transaction) Rollback(ctx context.Context) error {
	_, err := t.tx.SendUnary(ctx, wire.RollbackRequest{})
	closeErr := t.tx.Close(true, nil)
	t.d.untrackTransaction(t)
	if err != nil {
		return err
	}
	return closeErr
}

// Close closes the transaction without committing or rolling back
// explicitly (e.g. a read transaction that has no side effects to
// finalize).
func (t *Transaction) Close() error {
	t.d.untrackTransaction(t)
	return t.tx.Close(true, nil)
}

// ResultStream is a row iterator over one query's server-streamed
// results (spec §4.G, §5 "Cancellation semantics").
type ResultStream struct {
	it *transaction.StreamIterator
}

// Next blocks until the next row arrives, the stream completes, or ctx
// is cancelled.
func (r *ResultStream) Next(ctx context.Context) (payload any, ok bool, err error) {
	return r.it.Next(ctx)
}

// Close cancels the stream if it has not already run to completion.
func (r *ResultStream) Close() error {
	return r.it.Close()
}
