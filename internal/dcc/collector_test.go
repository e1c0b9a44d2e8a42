package dcc_test

import (
	"context"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/openwatch/netmon-server/internal/dcc"
	"github.com/openwatch/netmon-server/internal/models"
)

// replyScript returns probe results from a list, repeating the last entry.
func replyScript(replies ...func() (string, models.ProbeResult)) probeFn {
	var mu sync.Mutex
	n := 0
	return func(name string) (string, models.ProbeResult) {
		mu.Lock()
		if n < len(replies)-1 {
			n++
			mu.Unlock()
			return replies[n-1]()
		}
		mu.Unlock()
		return replies[len(replies)-1]()
	}
}

func reply(value string, result models.ProbeResult) func() (string, models.ProbeResult) {
	return func() (string, models.ProbeResult) { return value, result }
}

// waitIdle blocks until the worker finished the item's in-flight poll.
func waitIdle(item *dcc.Item) {
	Eventually(item.IsBusy, 5*time.Second, 10*time.Millisecond).Should(BeFalse())
}

var _ = Describe("CollectorPool", func() {
	var (
		cctx     *dcc.Context
		node     *fakeNode
		core     *dcc.Core
		shutDown bool
	)

	startCore := func() {
		core = dcc.Start(cctx)
		shutDown = false
	}

	BeforeEach(func() {
		cctx = dcc.NewContext()
		cctx.NumCollectors = 4
		node = newFakeNode(100, "core-rtr-1")
		cctx.Objects.RegisterNode(node)
	})

	AfterEach(func() {
		if core != nil && !shutDown {
			core.Shutdown()
		}
		core = nil
	})

	Describe("plain agent polling", func() {
		It("should deliver the value, then the error, keeping the item active", func() {
			node.agentFn = replyScript(
				reply("42", models.ProbeSuccess),
				reply("", models.ProbeCommError),
			)
			item := dcc.NewItem(cctx, 1, "Agent.Uptime", models.SourceNativeAgent, 60, 30, node)
			node.Add(item)

			startCore()

			var s sample
			Eventually(node.values, 5*time.Second).Should(Receive(&s))
			Expect(s.value).To(Equal("42"))

			waitIdle(item)
			item.SetLastPollTime(time.Now().Add(-61 * time.Second))

			var e collectionError
			Eventually(node.errors, 5*time.Second).Should(Receive(&e))
			Expect(e.noInstance).To(BeFalse())
			Expect(item.Status()).To(Equal(models.ItemStatusActive))
		})
	})

	Describe("not-supported recovery", func() {
		It("should demote, slow down, and re-promote before forwarding", func() {
			var mu sync.Mutex
			calls := 0
			node.snmpFn = func(port uint16, name string, raw models.SNMPRawKind) (string, models.ProbeResult) {
				mu.Lock()
				calls++
				first := calls == 1
				mu.Unlock()
				if first {
					return "", models.ProbeNotSupported
				}
				return "uptime 4711", models.ProbeSuccess
			}
			item := dcc.NewItem(cctx, 1, "1.3.6.1.2.1.1.3.0", models.SourceSNMP, 60, 30, node)
			item.SetSNMPPort(161)
			node.Add(item)

			startCore()

			Eventually(item.Status, 5*time.Second).Should(Equal(models.ItemStatusNotSupported))
			waitIdle(item)

			// Not due again at the nominal cadence.
			Expect(item.IsDue(item.LastPollTime().Add(61 * time.Second))).To(BeFalse())

			// Next attempt succeeds and must re-promote before the value
			// reaches the owner.
			item.SetLastPollTime(time.Now().Add(-601 * time.Second))

			var s sample
			Eventually(node.values, 5*time.Second).Should(Receive(&s))
			Expect(s.statusAtValue).To(Equal(models.ItemStatusActive))
			Expect(item.Status()).To(Equal(models.ItemStatusActive))
		})
	})

	Describe("cluster aggregation", func() {
		It("should aggregate flagged items and ignore the rest", func() {
			cluster := newFakeCluster(200, "db-cluster")
			cctx.Objects.RegisterCluster(cluster)

			flagged := dcc.NewItem(cctx, 1, "DB.Sessions", models.SourceNativeAgent, 30, 30, cluster)
			flagged.SetFlags(models.FlagAggregateOnCluster)
			plain := dcc.NewItem(cctx, 2, "DB.Locks", models.SourceNativeAgent, 30, 30, cluster)
			cluster.Add(flagged)
			cluster.Add(plain)

			startCore()

			Eventually(cluster.aggregated, 5*time.Second).Should(Receive(Equal(uint32(1))))
			Eventually(cluster.values, 5*time.Second).Should(Receive())

			// The unflagged item completes its poll without producing
			// anything downstream.
			Eventually(plain.LastPollTime, 5*time.Second).ShouldNot(BeZero())
			Consistently(cluster.aggregated).ShouldNot(Receive(Equal(uint32(2))))
		})
	})

	Describe("source node override", func() {
		var remote *fakeNode

		BeforeEach(func() {
			remote = newFakeNode(101, "proxy-1")
			cctx.Objects.RegisterNode(remote)
		})

		It("should collect through a trusting override node", func() {
			remote.trust(node.ID())
			remote.agentFn = replyScript(reply("99", models.ProbeSuccess))

			item := dcc.NewItem(cctx, 1, "Agent.Uptime", models.SourceNativeAgent, 60, 30, node)
			item.SetSourceNode(remote.ID())
			node.Add(item)

			startCore()

			// The probe runs on the override node; the value still lands on
			// the owner.
			var s sample
			Eventually(node.values, 5*time.Second).Should(Receive(&s))
			Expect(s.value).To(Equal("99"))
			Expect(remote.maxConcurrentProbes("Agent.Uptime")).To(BeNumerically(">=", 1))

			waitIdle(item)
			Expect(node.RefCount()).To(Equal(int32(0)))
			Expect(remote.RefCount()).To(Equal(int32(0)))
		})

		It("should demote items pointing at an untrusting node", func() {
			remote.agentFn = replyScript(reply("99", models.ProbeSuccess))

			item := dcc.NewItem(cctx, 1, "Agent.Uptime", models.SourceNativeAgent, 60, 30, node)
			item.SetSourceNode(remote.ID())
			node.Add(item)

			startCore()

			Eventually(item.Status, 5*time.Second).Should(Equal(models.ItemStatusNotSupported))
			Expect(remote.maxConcurrentProbes("Agent.Uptime")).To(BeZero())
			Consistently(node.values).ShouldNot(Receive())

			waitIdle(item)
			Expect(node.RefCount()).To(Equal(int32(0)))
		})
	})

	Describe("synthesized parameters", func() {
		It("should build the WinPerf counter parameter", func() {
			names := make(chan string, 8)
			node.agentFn = func(name string) (string, models.ProbeResult) {
				names <- name
				return "17", models.ProbeSuccess
			}

			item := dcc.NewItem(cctx, 1, `Disk("C:") Queue`, models.SourceWinPerf, 60, 30, node)
			item.SetSampleCount(3)
			node.Add(item)

			startCore()

			var name string
			Eventually(names, 5*time.Second).Should(Receive(&name))
			Expect(name).To(Equal(`PDH.CounterValue("Disk(\"C:\") Queue",3)`))
		})

		It("should route SSH commands through the zone proxy", func() {
			proxy := newFakeNode(102, "zone-proxy")
			commands := make(chan string, 8)
			proxy.agentFn = func(name string) (string, models.ProbeResult) {
				commands <- name
				return "ok", models.ProbeSuccess
			}
			cctx.Objects.RegisterNode(proxy)
			cctx.Objects.SetZoneProxy(5, proxy.ID())
			node.zoneID = 5

			item := dcc.NewItem(cctx, 1, "uptime", models.SourceSSH, 60, 30, node)
			node.Add(item)

			startCore()

			var command string
			Eventually(commands, 5*time.Second).Should(Receive(&command))
			Expect(command).To(Equal(`SSH.Command(10.0.0.1,"monitor","secret","uptime")`))
		})
	})

	Describe("transformation failures", func() {
		It("should convert a runtime failure into a collection error", func() {
			node.agentFn = replyScript(reply("21", models.ProbeSuccess))
			item := dcc.NewItem(cctx, 1, "Agent.Uptime", models.SourceNativeAgent, 60, 30, node)
			item.SetTransformationScript(`error("bad sample")`)
			node.Add(item)

			startCore()

			var e collectionError
			Eventually(node.errors, 5*time.Second).Should(Receive(&e))
			Expect(e.noInstance).To(BeFalse())
			Consistently(node.values).ShouldNot(Receive())
			Expect(item.Status()).To(Equal(models.ItemStatusActive))
		})
	})

	Describe("value sink refusal", func() {
		It("should demote the sample to a collection error", func() {
			node.processOK = false
			node.agentFn = replyScript(reply("21", models.ProbeSuccess))
			item := dcc.NewItem(cctx, 1, "Agent.Uptime", models.SourceNativeAgent, 60, 30, node)
			node.Add(item)

			startCore()

			var e collectionError
			Eventually(node.errors, 5*time.Second).Should(Receive(&e))
			Expect(e.noInstance).To(BeFalse())
		})
	})

	Describe("mutual exclusion", func() {
		It("should never run two probes for the same item concurrently", func() {
			node.agentFn = func(name string) (string, models.ProbeResult) {
				time.Sleep(20 * time.Millisecond)
				return "1", models.ProbeSuccess
			}
			item := dcc.NewItem(cctx, 1, "Agent.Uptime", models.SourceNativeAgent, 60, 30, node)
			node.Add(item)

			startCore()

			// Hammer the enqueue path from several goroutines; the busy flag
			// must keep the per-item queue depth at one.
			stop := make(chan struct{})
			var wg sync.WaitGroup
			future := time.Now().Add(time.Hour)
			for range 4 {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for {
						select {
						case <-stop:
							return
						default:
							item.SetLastPollTime(time.Time{})
							node.QueueItemsForPolling(future, cctx.Queue)
						}
					}
				}()
			}

			time.Sleep(500 * time.Millisecond)
			close(stop)
			wg.Wait()
			waitIdle(item)

			Expect(node.maxConcurrentProbes("Agent.Uptime")).To(Equal(int32(1)))
		})
	})

	Describe("force poll", func() {
		It("should poll out of cadence and notify the requester once", func() {
			node.agentFn = replyScript(reply("5", models.ProbeSuccess))
			item := dcc.NewItem(cctx, 1, "Agent.Uptime", models.SourceNativeAgent, 3600, 30, node)
			item.SetLastPollTime(time.Now())
			node.Add(item)

			startCore()

			session := &fakeSession{}
			item.RequestForcePoll(session)

			Eventually(func() int32 { return session.notified.Load() }, 5*time.Second).Should(Equal(int32(1)))
			Eventually(func() int32 { return session.released.Load() }, 5*time.Second).Should(Equal(int32(1)))
			Expect(item.HasPendingForcePoll()).To(BeFalse())
		})
	})

	Describe("deletion", func() {
		It("should flush persistence and release the owner reference", func() {
			schedules := &fakeScheduleStore{deleted: make(chan uint32, 4)}
			cctx.Schedules = schedules

			item := dcc.NewItem(cctx, 7, "Agent.Uptime", models.SourceNativeAgent, 60, 30, node)
			node.Add(item)
			Expect(item.PrepareForDeletion()).To(BeTrue())

			startCore()

			// A deletion-flagged item is never scheduled again; hand it to a
			// worker directly, with the reference the scheduler would hold.
			node.IncRefCount()
			cctx.Queue.Put(item)

			Eventually(schedules.deleted, 5*time.Second).Should(Receive(Equal(uint32(7))))
			Eventually(node.RefCount, 5*time.Second).Should(Equal(int32(0)))
		})
	})

	Describe("shutdown", func() {
		It("should stop all loops, drain in-flight polls and leave nothing busy", func() {
			node.agentFn = func(name string) (string, models.ProbeResult) {
				time.Sleep(200 * time.Millisecond)
				return "1", models.ProbeSuccess
			}
			var items []*dcc.Item
			for n := uint32(1); n <= 8; n++ {
				item := dcc.NewItem(cctx, n, "Agent.Uptime", models.SourceNativeAgent, 60, 30, node)
				node.Add(item)
				items = append(items, item)
			}
			cctx.NumCollectors = 10

			startCore()

			Eventually(node.values, 5*time.Second).Should(Receive())

			done := make(chan struct{})
			go func() {
				core.Shutdown()
				close(done)
			}()
			Eventually(done, 10*time.Second).Should(BeClosed())
			shutDown = true

			Expect(cctx.Queue.Len()).To(BeZero())
			for _, item := range items {
				Expect(item.IsBusy()).To(BeFalse())
			}
		})
	})

	Describe("self monitoring", func() {
		It("should expose averages for built-in and registered queues", func() {
			startCore()
			core.Stats().RegisterQueue("idata-writer", cctx.CacheQueue, true)

			averages := core.Stats().Averages()
			Expect(averages).To(HaveKey(dcc.StatCollectionQueue))
			Expect(averages).To(HaveKey(dcc.StatCombinedWriters))
			Expect(averages).To(HaveKey("idata-writer"))
			Expect(core.AvgQueuingTime()).To(BeNumerically(">=", 0))
		})
	})

	Describe("cache loader", func() {
		It("should warm caches with retry and release the owner reference", func() {
			source := &fakeCacheSource{}
			source.failures.Store(1)
			cctx.Cache = source

			item := dcc.NewItem(cctx, 1, "Agent.Uptime", models.SourceNativeAgent, 60, 30, node)
			item.SetCacheRequirement(100)
			node.Add(item)

			startCore()

			Expect(item.IsCacheLoaded()).To(BeFalse())
			dcc.EnqueueCacheLoad(cctx, item)

			Eventually(item.IsCacheLoaded, 10*time.Second).Should(BeTrue())
			Expect(source.loads.Load()).To(BeNumerically(">=", 2))
			Eventually(node.RefCount, 5*time.Second).Should(Equal(int32(0)))
		})
	})
})

// fakeScheduleStore keeps schedule sets in memory and records deletions for
// the worker destruction path.
type fakeScheduleStore struct {
	mu      sync.Mutex
	saved   map[uint32][]string
	deleted chan uint32
}

func (s *fakeScheduleStore) LoadSchedules(ctx context.Context, itemID uint32) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.saved[itemID]...), nil
}

func (s *fakeScheduleStore) SaveSchedules(ctx context.Context, itemID uint32, schedules []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saved == nil {
		s.saved = make(map[uint32][]string)
	}
	s.saved[itemID] = append([]string(nil), schedules...)
	return nil
}

func (s *fakeScheduleStore) DeleteSchedules(ctx context.Context, itemID uint32) error {
	s.deleted <- itemID
	return nil
}

var _ dcc.ScheduleStore = (*fakeScheduleStore)(nil)
