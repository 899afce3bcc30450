/*
Copyright 2025 Bountybase Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package chain

import (
	"context"
	"crypto/ed25519"
	"encoding/json"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
)

// NonceSource reads the chain-observed next nonce for an account. The chain
// Client satisfies it.
type NonceSource interface {
	AccountNonce(ctx context.Context, address string) (uint64, error)
}

// Signer owns the platform private key and the authoritative next-nonce
// counter. All signing runs on a single goroutine fed by a message channel,
// so nonce assignment and signing are atomic per request: no two in-flight
// transactions can share a nonce, and no other code path can construct a
// platform transaction.
type Signer struct {
	address  string
	contract string
	requests chan signerMsg
	done     chan struct{}
}

type signerMsg interface{ isSignerMsg() }

type signMsg struct {
	method string
	params interface{}
	reply  chan signReply
}

type resyncMsg struct {
	ctx   context.Context
	reply chan error
}

type nonceMsg struct {
	reply chan uint64
}

func (signMsg) isSignerMsg()   {}
func (resyncMsg) isSignerMsg() {}
func (nonceMsg) isSignerMsg()  {}

type signReply struct {
	tx  *SignedTransaction
	err error
}

// NewSigner creates a signer from a base58-encoded 32-byte ed25519 seed. The
// initial nonce is read from the chain so a restarted service resumes from
// the account's observed sequence. The key is held only inside the signer
// goroutine and is never logged or persisted.
func NewSigner(ctx context.Context, seedB58, contractAddress string, nonces NonceSource) (*Signer, error) {
	seed, err := base58.Decode(seedB58)
	if err != nil {
		return nil, errors.Wrap(err, "failed to decode signing key")
	}
	if len(seed) != ed25519.SeedSize {
		return nil, errors.Errorf("signing key must be a %d-byte seed", ed25519.SeedSize)
	}

	key := ed25519.NewKeyFromSeed(seed)
	address := base58.Encode(key.Public().(ed25519.PublicKey))

	next, err := nonces.AccountNonce(ctx, address)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read account nonce")
	}

	s := &Signer{
		address:  address,
		contract: contractAddress,
		requests: make(chan signerMsg),
		done:     make(chan struct{}),
	}
	go s.run(key, next, nonces)
	return s, nil
}

// Address returns the platform's chain address.
func (s *Signer) Address() string {
	return s.address
}

// Close stops the signer goroutine. Pending requests fail.
func (s *Signer) Close() {
	close(s.done)
}

// run is the single-owner loop: it is the only code that touches the private
// key and the nonce counter.
func (s *Signer) run(key ed25519.PrivateKey, next uint64, nonces NonceSource) {
	for {
		select {
		case <-s.done:
			return
		case msg := <-s.requests:
			switch m := msg.(type) {
			case signMsg:
				tx, err := s.sign(key, next, m.method, m.params)
				if err == nil {
					next++
				}
				m.reply <- signReply{tx: tx, err: err}
			case resyncMsg:
				observed, err := nonces.AccountNonce(m.ctx, s.address)
				if err == nil {
					next = observed
				}
				m.reply <- err
			case nonceMsg:
				m.reply <- next
			}
		}
	}
}

func (s *Signer) sign(key ed25519.PrivateKey, nonce uint64, method string, params interface{}) (*SignedTransaction, error) {
	rawParams, err := json.Marshal(params)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal contract params")
	}

	tx := Transaction{
		From:     s.address,
		Nonce:    nonce,
		Contract: s.contract,
		Method:   method,
		Params:   rawParams,
	}
	signingBytes, err := tx.SigningBytes()
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode transaction")
	}
	sig := ed25519.Sign(key, signingBytes)

	return &SignedTransaction{
		Transaction: tx,
		Signature:   base58.Encode(sig),
		Hash:        ComputeHash(signingBytes, sig),
	}, nil
}

// SignContractCall produces a signed transaction for a contract method,
// consuming exactly one nonce.
func (s *Signer) SignContractCall(ctx context.Context, method string, params interface{}) (*SignedTransaction, error) {
	reply := make(chan signReply, 1)
	select {
	case s.requests <- signMsg{method: method, params: params, reply: reply}:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.done:
		return nil, errors.New("signer closed")
	}

	select {
	case r := <-reply:
		return r.tx, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// SignDistribute produces a signed distribute transaction for a payout.
func (s *Signer) SignDistribute(ctx context.Context, params DistributeParams) (*SignedTransaction, error) {
	return s.SignContractCall(ctx, MethodDistribute, params)
}

// Resync reconciles the local nonce counter against the chain-observed
// account nonce. Called after a submission is rejected before inclusion, so a
// nonce gap cannot stall all subsequent payouts.
func (s *Signer) Resync(ctx context.Context) error {
	reply := make(chan error, 1)
	select {
	case s.requests <- resyncMsg{ctx: ctx, reply: reply}:
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return errors.New("signer closed")
	}

	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// NextNonce returns the nonce the next signed transaction will carry.
// Primarily for observability and tests.
func (s *Signer) NextNonce() uint64 {
	reply := make(chan uint64, 1)
	select {
	case s.requests <- nonceMsg{reply: reply}:
		return <-reply
	case <-s.done:
		return 0
	}
}
