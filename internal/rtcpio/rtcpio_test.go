package rtcpio

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ravennakit/ravennakit/internal/rtp"
)

func TestToNTPRoundTripsWholeSeconds(t *testing.T) {
	tm := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	sec, frac := toNTP(tm)
	require.Equal(t, uint32(0), frac)
	require.Equal(t, uint32(tm.Unix()+ntpEpochOffset), sec)
}

func TestConsumerIngestSingleSRRecordsPeerState(t *testing.T) {
	c := NewConsumer(ConsumerConfig{})

	sr := rtp.SenderReport{
		SSRC:         0xAABBCCDD,
		NTPSeconds:   123456,
		NTPFraction:  7,
		RTPTimestamp: 99999,
		PacketCount:  10,
		OctetCount:   1000,
	}
	buf, err := sr.MarshalBinary()
	require.NoError(t, err)

	now := time.Unix(1000, 0)
	c.Ingest(buf, now)

	p, ok := c.Peer(0xAABBCCDD)
	require.True(t, ok)
	require.Equal(t, uint32(123456), p.LastNTPSec)
	require.Equal(t, uint32(99999), p.LastRTPTs)
	require.Equal(t, now, p.LocalArrival)
}

func TestConsumerIngestMalformedPacketCountsParseError(t *testing.T) {
	c := NewConsumer(ConsumerConfig{})
	c.Ingest([]byte{0x01}, time.Now())
	require.Equal(t, uint64(1), c.ParseErrors())
	require.Empty(t, c.Peers())
}

func TestSenderReportFromSenderFieldsIsParsable(t *testing.T) {
	s := NewSender(SenderConfig{SSRC: 42, SampleRateHz: 48000, EmitInterval: 5 * time.Second})

	reports := []rtp.ReceiverReportBlock{{SSRC: 7, FractionLost: 1}}
	sr := rtp.SenderReport{
		SSRC:         s.cfg.SSRC,
		NTPSeconds:   1,
		NTPFraction:  2,
		RTPTimestamp: 3,
		PacketCount:  s.packetCount,
		OctetCount:   s.octetCount,
		Reports:      reports,
	}
	buf, err := sr.MarshalBinary()
	require.NoError(t, err)

	view, err := rtp.NewRTCPPacketView(buf)
	require.NoError(t, err)
	require.Equal(t, rtp.RTCPTypeSR, view.Type())
	require.Equal(t, uint32(42), view.SSRC())
	require.EqualValues(t, 1, view.ReceptionReportCount())
}

func TestSenderDueInitiallyTrueThenWaitsForInterval(t *testing.T) {
	s := NewSender(SenderConfig{EmitInterval: time.Second})
	now := time.Unix(100, 0)
	require.True(t, s.Due(now)) // nextEmit is zero value, always due initially

	s.nextEmit = now.Add(time.Second)
	require.False(t, s.Due(now))
	require.True(t, s.Due(now.Add(time.Second)))
}
