package ledger

import (
	"errors"
	"sync"
	"testing"

	"github.com/holiman/uint256"
	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
)

func TestExecutor_CommitReturnsEvents(t *testing.T) {
	j, tok := newTestToken(t)
	j.Reset()
	exec := NewExecutor(j)

	events, err := exec.Execute(func() error {
		return tok.Transfer(alice, bob, uint256.NewInt(5))
	})
	assert.NoError(t, err)
	check.Equal(t, 1, len(events))
	check.Equal(t, uint64(5), tok.BalanceOf(bob).Uint64())
	check.Equal(t, 0, j.Snapshot())
}

func TestExecutor_FailureRevertsEverything(t *testing.T) {
	j, tok := newTestToken(t)
	exec := NewExecutor(j)
	boom := errors.New("boom")

	events, err := exec.Execute(func() error {
		if err := tok.Transfer(alice, bob, uint256.NewInt(5)); err != nil {
			return err
		}
		return boom
	})
	check.True(t, errors.Is(err, boom))
	check.Nil(t, events)
	check.True(t, tok.BalanceOf(bob).IsZero())
	check.Equal(t, uint64(1_000), tok.BalanceOf(alice).Uint64())
}

func TestExecutor_SerializesTransactions(t *testing.T) {
	j, tok := newTestToken(t)
	exec := NewExecutor(j)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = exec.Execute(func() error {
				return tok.Transfer(alice, bob, uint256.NewInt(10))
			})
			_ = exec.View(func() error {
				_ = tok.BalanceOf(bob)
				return nil
			})
		}()
	}
	wg.Wait()

	check.Equal(t, uint64(500), tok.BalanceOf(bob).Uint64())
	check.Equal(t, uint64(500), tok.BalanceOf(alice).Uint64())
}
