package dnssd

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNotifyDeliversToAllSubscribers(t *testing.T) {
	var s Subscribers
	var got []string
	s.Subscribe(func(ev Event) { got = append(got, "a:"+ev.Name) })
	s.Subscribe(func(ev Event) { got = append(got, "b:"+ev.Name) })

	s.Notify(Event{Kind: EventResolved, Name: "mixer-1"})

	require.ElementsMatch(t, []string{"a:mixer-1", "b:mixer-1"}, got)
}

func TestUnsubscribeDuringNotifyDoesNotAffectCurrentIteration(t *testing.T) {
	var s Subscribers
	var calls int
	var second int

	var secondToken int
	firstToken := s.Subscribe(func(ev Event) {
		calls++
		s.Unsubscribe(secondToken)
	})
	secondToken = s.Subscribe(func(ev Event) {
		second++
	})
	_ = firstToken

	s.Notify(Event{Kind: EventRemoved})
	require.Equal(t, 1, calls)
	require.Equal(t, 1, second) // still ran this round, snapshot taken before unsubscribe

	s.Notify(Event{Kind: EventRemoved})
	require.Equal(t, 2, calls)
	require.Equal(t, 1, second) // not called again after being unsubscribed
}

func TestUnsubscribeRemovesHandler(t *testing.T) {
	var s Subscribers
	called := false
	token := s.Subscribe(func(ev Event) { called = true })
	s.Unsubscribe(token)

	s.Notify(Event{Kind: EventError})
	require.False(t, called)
}
