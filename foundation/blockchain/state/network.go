package state

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ardanlabs/powledger/foundation/blockchain/database"
	"github.com/ardanlabs/powledger/foundation/blockchain/peer"
	"github.com/ardanlabs/powledger/foundation/metrics"
)

// NetSendBlockToPeers takes the new mined block and sends it to all known
// peers. A peer that can't be reached is skipped.
func (s *State) NetSendBlockToPeers(ctx context.Context, block database.Block) {
	s.evHandler("state: NetSendBlockToPeers: started")
	defer s.evHandler("state: NetSendBlockToPeers: completed")

	if s.peerClient == nil {
		return
	}

	blockData := database.NewBlockData(block)

	for _, pr := range s.RetrieveKnownPeers() {
		started := time.Now()

		ctx, cancel := context.WithTimeout(ctx, s.peerTimeout)
		err := s.peerClient.SendBlock(ctx, pr, blockData)
		cancel()

		s.metrics.ObservePeerRequest(peer.TypeBlock, err, started)

		if err != nil {
			s.evHandler("state: NetSendBlockToPeers: WARNING: %s", err)
			continue
		}

		s.evHandler("state: NetSendBlockToPeers: sent to peer[%s]", pr)
	}
}

// Reconcile asks every known peer for its chain and replaces the local
// chain with the longest valid one, as long as it is strictly longer than
// the local chain. It reports whether the local chain was replaced.
func (s *State) Reconcile(ctx context.Context) (bool, error) {
	s.evHandler("state: Reconcile: started")
	defer s.evHandler("state: Reconcile: completed")

	if s.peerClient == nil {
		return false, nil
	}

	candidates := s.netRequestPeerChains(ctx)

	s.mu.RLock()
	localLen := len(s.chain)
	s.mu.RUnlock()

	// Longest chain first, ties broken by host for a stable choice.
	sort.Slice(candidates, func(i, j int) bool {
		if len(candidates[i].blocks) != len(candidates[j].blocks) {
			return len(candidates[i].blocks) > len(candidates[j].blocks)
		}
		return candidates[i].peer.Host < candidates[j].peer.Host
	})

	for _, cand := range candidates {
		if len(cand.blocks) <= localLen {
			break
		}

		replaced, err := s.replaceChain(cand)
		if err != nil {
			s.metrics.ObserveReconcile(metrics.StatusError)
			return false, err
		}

		if replaced {
			s.metrics.ObserveReconcile(metrics.StatusReplaced)
			s.Worker.SignalCancelMining()
			return true, nil
		}
	}

	s.metrics.ObserveReconcile(metrics.StatusUnchanged)

	return false, nil
}

// =============================================================================

type candidate struct {
	peer   peer.Peer
	blocks []database.Block
}

// netRequestPeerChains requests the chain from every known peer at the
// same time. Peers that fail to answer in time or send malformed blocks
// are left out.
func (s *State) netRequestPeerChains(ctx context.Context) []candidate {
	peers := s.RetrieveKnownPeers()
	results := make([]*candidate, len(peers))

	var wg sync.WaitGroup
	for i, pr := range peers {
		wg.Add(1)
		go func() {
			defer wg.Done()

			started := time.Now()

			ctx, cancel := context.WithTimeout(ctx, s.peerTimeout)
			defer cancel()

			chainData, err := s.peerClient.RequestChain(ctx, pr)
			s.metrics.ObservePeerRequest(peer.TypeGetChain, err, started)

			if err != nil {
				s.evHandler("state: Reconcile: peer[%s]: WARNING: %s", pr, err)
				return
			}

			blocks := make([]database.Block, 0, len(chainData))
			for _, blockData := range chainData {
				block, err := database.ToBlock(blockData)
				if err != nil {
					s.evHandler("state: Reconcile: peer[%s]: WARNING: block[%d]: %s", pr, blockData.Header.Number, err)
					return
				}
				blocks = append(blocks, block)
			}

			s.evHandler("state: Reconcile: peer[%s]: blocks[%d]", pr, len(blocks))
			results[i] = &candidate{peer: pr, blocks: blocks}
		}()
	}
	wg.Wait()

	candidates := make([]candidate, 0, len(results))
	for _, cand := range results {
		if cand != nil {
			candidates = append(candidates, *cand)
		}
	}

	return candidates
}

// replaceChain validates the candidate chain from the genesis block and
// if that passes, replaces the local chain with it. Transactions from
// local blocks that are not part of the new chain go back to the mempool.
func (s *State) replaceChain(cand candidate) (bool, error) {
	ledger, txIndex, err := s.validateChain(cand.blocks)
	if err != nil {
		s.evHandler("state: Reconcile: peer[%s]: WARNING: invalid chain: %s", cand.peer, err)
		return false, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// The local chain could have grown while the candidate was validated.
	if len(cand.blocks) <= len(s.chain) {
		return false, nil
	}

	if err := s.db.WriteChain(cand.blocks); err != nil {
		return false, fmt.Errorf("write chain: %w", err)
	}

	fork := 0
	for fork < len(s.chain) && s.chain[fork].Hash() == cand.blocks[fork].Hash() {
		fork++
	}

	dropped := s.chain[fork:]

	s.chain = cand.blocks
	s.txIndex = txIndex
	s.accounts.Replace(ledger)

	var trans []database.Tx
	for _, block := range dropped {
		trans = append(trans, block.Transactions()...)
	}
	s.requeueLocked(trans)

	for _, tx := range s.mempool.Copy() {
		if _, exists := s.txIndex[tx.HashHex()]; exists {
			s.mempool.Delete(tx)
		}
	}

	tip := s.chain[len(s.chain)-1]
	s.metrics.ObserveHeight(tip.Header.Number)
	s.metrics.ObserveMempool(s.mempool.Count())

	s.evHandler("state: Reconcile: peer[%s]: chain replaced: fork[%d]: height[%d]", cand.peer, fork, tip.Header.Number)
	s.blockEvent(tip)

	return true, nil
}
