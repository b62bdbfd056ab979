package eventlog

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLog_AppendOnlyInOrder(t *testing.T) {
	l := New()
	l.Add("Creating PaymentIntent on backend...", "backend.createPaymentIntent")
	l.Add("Retrieved PaymentIntent", "terminal.retrievePaymentIntent")
	l.Add("Retrieved PaymentIntent", "terminal.retrievePaymentIntent")

	got := l.Events()
	require.Len(t, got, 3)
	assert.Equal(t, Event{Message: "Creating PaymentIntent on backend...", Method: "backend.createPaymentIntent"}, got[0])
	assert.Equal(t, got[1], got[2], "duplicates are kept")

	got[0].Message = "mutated"
	assert.Equal(t, "Creating PaymentIntent on backend...", l.Events()[0].Message)
}

func TestLog_Subscribe(t *testing.T) {
	l := New()
	l.Add("before", "x")

	ch, cancel := l.Subscribe()
	l.Add("after", "y")
	cancel()
	cancel()

	var got []Event
	for e := range ch {
		got = append(got, e)
	}
	assert.Equal(t, []Event{{Message: "after", Method: "y"}}, got)
	assert.Equal(t, 2, l.Len())
}

func TestLog_ConcurrentAdd(t *testing.T) {
	l := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Add("step", "m")
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, l.Len())
}
