package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/fystack/mpcium-client/pkg/common/generation"
	"github.com/fystack/mpcium-client/pkg/encoding"
	"github.com/fystack/mpcium-client/pkg/event"
	"github.com/fystack/mpcium-client/pkg/infra"
	"github.com/fystack/mpcium-client/pkg/logger"
	"github.com/fystack/mpcium-client/pkg/types"
	"github.com/urfave/cli/v3"
)

// waiter delivers the result whose correlation id matches the submitted
// request. Results for other requests are logged and acknowledged, so the
// CLI reads from its own durable consumers (consumer.durable_suffix).
type waiter[T interface{ CorrelationID() string }] struct {
	id      string
	results chan T
}

func newWaiter[T interface{ CorrelationID() string }](id string) *waiter[T] {
	return &waiter[T]{id: id, results: make(chan T, 1)}
}

// correlationID returns id, or a generated one when id is empty, so the
// waiter knows what to match before the request is published.
func correlationID(id string) (string, error) {
	if id != "" {
		return id, nil
	}
	return generation.NewCorrelationID()
}

func (w *waiter[T]) handle(evt T) error {
	if evt.CorrelationID() != w.id {
		logger.Info("Received result for another request", "id", evt.CorrelationID())
		return nil
	}
	select {
	case w.results <- evt:
	default:
	}
	return nil
}

func (w *waiter[T]) wait(ctx context.Context, timeout time.Duration) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	select {
	case evt := <-w.results:
		return evt, nil
	case <-ctx.Done():
		var zero T
		return zero, fmt.Errorf("no result for %s after %s: %w", w.id, timeout, ctx.Err())
	}
}

func printResult(v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func createWallet(ctx context.Context, c *cli.Command) error {
	s, err := newSession(c)
	if err != nil {
		return err
	}
	defer s.Close()

	walletID, err := correlationID(c.String("wallet-id"))
	if err != nil {
		return err
	}
	w := newWaiter[event.KeygenResultEvent](walletID)
	if !c.Bool("no-wait") {
		if err := s.client.OnWalletCreationResult(w.handle); err != nil {
			return err
		}
	}

	if _, err := s.client.CreateWallet(w.id); err != nil {
		return err
	}
	fmt.Println("Submitted keygen request for wallet", w.id)
	if c.Bool("no-wait") {
		return nil
	}

	evt, err := w.wait(ctx, c.Duration("timeout"))
	if err != nil {
		return err
	}
	if evt.ResultType != event.ResultTypeSuccess {
		return printResult(evt)
	}

	summary, err := encoding.SummarizeKeys(evt.ECDSAPubKey, evt.EDDSAPubKey)
	if err != nil {
		logger.Warn("Keygen result carries an invalid public key", "wallet_id", evt.WalletID, "error", err.Error())
		return printResult(evt)
	}
	return printResult(struct {
		WalletID string `json:"wallet_id"`
		encoding.KeySummary
	}{evt.WalletID, summary})
}

func signTransaction(ctx context.Context, c *cli.Command) error {
	tx, err := hex.DecodeString(strings.TrimPrefix(c.String("tx"), "0x"))
	if err != nil {
		return fmt.Errorf("--tx must be hex encoded: %w", err)
	}

	s, err := newSession(c)
	if err != nil {
		return err
	}
	defer s.Close()

	txID, err := correlationID(c.String("tx-id"))
	if err != nil {
		return err
	}
	msg := &types.SignTxMessage{
		KeyType:             types.KeyType(c.String("key-type")),
		WalletID:            c.String("wallet-id"),
		NetworkInternalCode: c.String("network"),
		TxID:                txID,
		Tx:                  tx,
	}

	w := newWaiter[event.SigningResultEvent](txID)
	if !c.Bool("no-wait") {
		if err := s.client.OnSignResult(w.handle); err != nil {
			return err
		}
	}

	if _, err := s.client.SignTransaction(msg); err != nil {
		return err
	}
	fmt.Println("Submitted signing request", w.id)
	if c.Bool("no-wait") {
		return nil
	}

	evt, err := w.wait(ctx, c.Duration("timeout"))
	if err != nil {
		return err
	}
	return printResult(evt)
}

func reshare(ctx context.Context, c *cli.Command) error {
	s, err := newSession(c)
	if err != nil {
		return err
	}
	defer s.Close()

	nodeIDs := c.StringSlice("nodes")
	var kv infra.ConsulKV
	if c.Bool("resolve-peers") {
		if kv, err = newConsulKV(s.cfg); err != nil {
			return err
		}
		if nodeIDs, err = resolveNodeIDs(s.cfg, kv, nodeIDs); err != nil {
			return err
		}
	}

	sessionID, err := correlationID(c.String("session-id"))
	if err != nil {
		return err
	}
	msg := &types.ResharingMessage{
		SessionID:    sessionID,
		NodeIDs:      nodeIDs,
		NewThreshold: int(c.Int("threshold")),
		KeyType:      types.KeyType(c.String("key-type")),
		WalletID:     c.String("wallet-id"),
	}

	if kv != nil {
		warnUnchangedCommittee(kv, msg)
	}

	w := newWaiter[event.ResharingResultEvent](sessionID)
	if !c.Bool("no-wait") {
		if err := s.client.OnResharingResult(w.handle); err != nil {
			return err
		}
	}

	if _, err := s.client.Resharing(msg); err != nil {
		return err
	}
	fmt.Println("Submitted reshare request", w.id)
	if c.Bool("no-wait") {
		return nil
	}

	evt, err := w.wait(ctx, c.Duration("timeout"))
	if err != nil {
		return err
	}
	return printResult(evt)
}

func listPending(ctx context.Context, c *cli.Command) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	journal, err := openJournal(cfg)
	if err != nil {
		return err
	}
	if journal == nil {
		return fmt.Errorf("journal.path is not configured")
	}
	defer journal.Close()

	pending, err := journal.Pending(c.String("category"))
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		fmt.Println("No pending requests")
		return nil
	}
	for _, req := range pending {
		fmt.Printf("%-8s %-40s %-12s %s\n", req.Category, req.ID, req.Path, req.SubmittedAt.Format(time.RFC3339))
	}
	return nil
}
