package port

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	ptp "github.com/ravennakit/ravennakit/ptp/protocol"
)

func testLocal() ptp.PortIdentity {
	return ptp.PortIdentity{ClockIdentity: 0x1, PortNumber: 1}
}

func testAnnounce(seq uint16, src ptp.ClockIdentity, priority1 uint8) *ptp.Announce {
	a := &ptp.Announce{}
	a.Header.SourcePortIdentity = ptp.PortIdentity{ClockIdentity: src, PortNumber: 1}
	a.Header.SequenceID = seq
	a.GrandmasterPriority1 = priority1
	a.GrandmasterPriority2 = 128
	a.GrandmasterIdentity = src
	a.GrandmasterClockQuality = ptp.ClockQuality{
		ClockClass:    6,
		ClockAccuracy: ptp.ClockAccuracyNanosecond100,
	}
	return a
}

func TestBMCAPrefersLowerPriority1(t *testing.T) {
	low := testAnnounce(1, 0xAAAA, 10)
	high := testAnnounce(1, 0xBBBB, 200)
	require.Same(t, low, bestOf(low, high))
	require.Same(t, low, bestOf(high, low))
}

func TestPortStartsListening(t *testing.T) {
	p := New(DefaultConfig(), testLocal())
	require.Equal(t, StateInitializing, p.State())
	p.Start(time.Unix(0, 0))
	require.Equal(t, StateListening, p.State())
}

func TestHandleAnnounceSelectsMasterAndGoesUncalibrated(t *testing.T) {
	p := New(DefaultConfig(), testLocal())
	p.Start(time.Unix(0, 0))

	a := testAnnounce(1, 0xAAAA, 128)
	err := p.HandleAnnounce(a, time.Unix(0, 0))
	require.NoError(t, err)
	require.Equal(t, StateUncalibrated, p.State())
	require.NotNil(t, p.BestMaster())
	require.Equal(t, ptp.ClockIdentity(0xAAAA), p.BestMaster().GrandmasterIdentity)
}

func TestHandleAnnounceRejectsStaleSequence(t *testing.T) {
	p := New(DefaultConfig(), testLocal())
	p.Start(time.Unix(0, 0))

	require.NoError(t, p.HandleAnnounce(testAnnounce(5, 0xAAAA, 128), time.Unix(0, 0)))
	err := p.HandleAnnounce(testAnnounce(3, 0xAAAA, 128), time.Unix(0, 0))
	require.ErrorIs(t, err, ErrStaleAnnounce)
	require.Equal(t, uint64(1), p.Stats().StaleAnnounces)
}

func TestHandleAnnounceSwitchesToBetterMaster(t *testing.T) {
	p := New(DefaultConfig(), testLocal())
	p.Start(time.Unix(0, 0))

	require.NoError(t, p.HandleAnnounce(testAnnounce(1, 0xAAAA, 200), time.Unix(0, 0)))
	require.Equal(t, ptp.ClockIdentity(0xAAAA), p.BestMaster().GrandmasterIdentity)

	require.NoError(t, p.HandleAnnounce(testAnnounce(1, 0xBBBB, 10), time.Unix(1, 0)))
	require.Equal(t, ptp.ClockIdentity(0xBBBB), p.BestMaster().GrandmasterIdentity)
}

func TestHandleSyncBeforeAnnounceErrors(t *testing.T) {
	p := New(DefaultConfig(), testLocal())
	p.Start(time.Unix(0, 0))

	s := &ptp.SyncDelayReq{}
	s.Header.SourcePortIdentity = ptp.PortIdentity{ClockIdentity: 0xAAAA, PortNumber: 1}
	err := p.HandleSync(s, 1000)
	require.ErrorIs(t, err, ErrSyncBeforeAnnounce)
}

func TestHandleSyncFromWrongSourceIsRejected(t *testing.T) {
	p := New(DefaultConfig(), testLocal())
	p.Start(time.Unix(0, 0))
	require.NoError(t, p.HandleAnnounce(testAnnounce(1, 0xAAAA, 128), time.Unix(0, 0)))

	s := &ptp.SyncDelayReq{}
	s.Header.SourcePortIdentity = ptp.PortIdentity{ClockIdentity: 0xBBBB, PortNumber: 1}
	err := p.HandleSync(s, 1000)
	require.ErrorIs(t, err, ErrNotBestMaster)
}

func TestOneStepSyncAppliesDirectly(t *testing.T) {
	p := New(DefaultConfig(), testLocal())
	p.Start(time.Unix(0, 0))
	master := ptp.ClockIdentity(0xAAAA)
	require.NoError(t, p.HandleAnnounce(testAnnounce(1, master, 128), time.Unix(0, 0)))

	s := &ptp.SyncDelayReq{}
	s.Header.SourcePortIdentity = ptp.PortIdentity{ClockIdentity: master, PortNumber: 1}
	s.Header.SequenceID = 1
	s.OriginTimestamp = ptp.NewTimestamp(time.Unix(100, 0))

	err := p.HandleSync(s, int64(100)*int64(time.Second))
	require.NoError(t, err)
	require.Equal(t, StateUncalibrated, p.State())
}

func TestTwoStepSyncWaitsForFollowUp(t *testing.T) {
	p := New(DefaultConfig(), testLocal())
	p.Start(time.Unix(0, 0))
	master := ptp.ClockIdentity(0xAAAA)
	require.NoError(t, p.HandleAnnounce(testAnnounce(1, master, 128), time.Unix(0, 0)))

	s := &ptp.SyncDelayReq{}
	s.Header.SourcePortIdentity = ptp.PortIdentity{ClockIdentity: master, PortNumber: 1}
	s.Header.SequenceID = 7
	s.Header.FlagField = ptp.FlagTwoStep

	require.NoError(t, p.HandleSync(s, int64(50)*int64(time.Second)))
	// state unchanged until FollowUp arrives
	require.Equal(t, StateUncalibrated, p.State())

	f := &ptp.FollowUp{}
	f.Header.SourcePortIdentity = ptp.PortIdentity{ClockIdentity: master, PortNumber: 1}
	f.Header.SequenceID = 7
	f.PreciseOriginTimestamp = ptp.NewTimestamp(time.Unix(50, 0))

	require.NoError(t, p.HandleFollowUp(f))
}

func TestFollowUpSequenceMismatchRejected(t *testing.T) {
	p := New(DefaultConfig(), testLocal())
	p.Start(time.Unix(0, 0))
	master := ptp.ClockIdentity(0xAAAA)
	require.NoError(t, p.HandleAnnounce(testAnnounce(1, master, 128), time.Unix(0, 0)))

	s := &ptp.SyncDelayReq{}
	s.Header.SourcePortIdentity = ptp.PortIdentity{ClockIdentity: master, PortNumber: 1}
	s.Header.SequenceID = 7
	s.Header.FlagField = ptp.FlagTwoStep
	require.NoError(t, p.HandleSync(s, 1000))

	f := &ptp.FollowUp{}
	f.Header.SourcePortIdentity = ptp.PortIdentity{ClockIdentity: master, PortNumber: 1}
	f.Header.SequenceID = 8
	err := p.HandleFollowUp(f)
	require.ErrorIs(t, err, ErrFollowUpSeqMismatch)
}

func TestFollowUpBeforeSyncRejected(t *testing.T) {
	p := New(DefaultConfig(), testLocal())
	p.Start(time.Unix(0, 0))
	master := ptp.ClockIdentity(0xAAAA)
	require.NoError(t, p.HandleAnnounce(testAnnounce(1, master, 128), time.Unix(0, 0)))

	f := &ptp.FollowUp{}
	f.Header.SourcePortIdentity = ptp.PortIdentity{ClockIdentity: master, PortNumber: 1}
	f.Header.SequenceID = 1
	err := p.HandleFollowUp(f)
	require.ErrorIs(t, err, ErrFollowUpSeqMismatch)
}

func TestAnnounceTimeoutReturnsToListening(t *testing.T) {
	p := New(DefaultConfig(), testLocal())
	start := time.Unix(0, 0)
	p.Start(start)
	require.NoError(t, p.HandleAnnounce(testAnnounce(1, 0xAAAA, 128), start))
	require.Equal(t, StateUncalibrated, p.State())

	p.Tick(p.AnnounceDeadline().Add(time.Millisecond))
	require.Equal(t, StateListening, p.State())
	require.Nil(t, p.BestMaster())
	require.Equal(t, uint64(1), p.Stats().AnnounceTimeouts)
}

func TestAnnounceTimeoutNoOpBeforeDeadline(t *testing.T) {
	p := New(DefaultConfig(), testLocal())
	start := time.Unix(0, 0)
	p.Start(start)
	require.NoError(t, p.HandleAnnounce(testAnnounce(1, 0xAAAA, 128), start))

	p.Tick(start.Add(time.Millisecond))
	require.Equal(t, StateUncalibrated, p.State())
}

func TestRepeatedSyncLocksServo(t *testing.T) {
	p := New(DefaultConfig(), testLocal())
	p.Start(time.Unix(0, 0))
	master := ptp.ClockIdentity(0xAAAA)
	require.NoError(t, p.HandleAnnounce(testAnnounce(1, master, 128), time.Unix(0, 0)))

	var seq uint16 = 1
	for i := 0; i < 20; i++ {
		s := &ptp.SyncDelayReq{}
		s.Header.SourcePortIdentity = ptp.PortIdentity{ClockIdentity: master, PortNumber: 1}
		s.Header.SequenceID = seq
		t1 := int64(i) * int64(125*time.Millisecond)
		s.OriginTimestamp = ptp.NewTimestamp(time.Unix(0, t1))
		require.NoError(t, p.HandleSync(s, t1))
		seq++
	}
	require.Equal(t, StateSlave, p.State())
	require.True(t, p.Published().Calibrated)
}
