package recycle

import (
	"bytes"
	"errors"
	"io/ioutil"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	. "github.com/mo-open/direct-cache-sub001/testutil"
)

var _ = Describe("Holder", func() {
	var (
		buf   *MockBuffer
		h     *Holder
		input []byte
		now   time.Time
	)
	BeforeEach(func() {
		input = RandBytes(1000)
		buf = NewMockBuffer(input)
		now = time.Now()
		h = NewHolder("key", buf, 0, now)
	})
	AfterEach(func() {
		buf.AssertExpectations(GinkgoT())
	})

	It("created live with one reference", func() {
		Expect(h.Key()).To(Equal("key"))
		Expect(h.IsLive()).To(BeTrue())
		Expect(h.References()).To(Equal(1))
		Expect(h.Len()).To(Equal(len(input)))
	})

	It("release of last reference frees buffer", func() {
		buf.On("Free").Return(nil).Once()
		Expect(h.Acquire()).To(Succeed())
		Expect(h.Release()).To(Succeed())
		Expect(h.IsLive()).To(BeTrue())
		Expect(h.Release()).To(Succeed())
		Expect(h.IsLive()).To(BeFalse())
	})

	It("free error returned by last release", func() {
		freeErr := errors.New("free failed")
		buf.On("Free").Return(freeErr).Once()
		Expect(h.Release()).To(Equal(freeErr))
	})

	Context("released", func() {
		BeforeEach(func() {
			buf.On("Free").Return(nil).Once()
			Expect(h.Release()).To(Succeed())
		})
		It("acquire fails", func() {
			Expect(h.Acquire()).To(MatchError(ErrAlreadyReleased))
			_, err := h.NewReader()
			Expect(err).To(MatchError(ErrAlreadyReleased))
			_, err = h.ReadAcquired()
			Expect(err).To(MatchError(ErrAlreadyReleased))
		})
		It("extra release is illegal", func() {
			Expect(h.Release()).To(MatchError(ErrIllegalState))
			Expect(h.References()).To(BeZero())
			Expect(h.Release()).To(MatchError(ErrIllegalState))
			Expect(h.References()).To(BeZero())
			buf.AssertNumberOfCalls(GinkgoT(), "Free", 1)
		})
		It("read is illegal", func() {
			_, err := h.Read()
			Expect(err).To(MatchError(ErrIllegalState))
		})
	})

	It("read acquired returns copy and keeps reference count", func() {
		data, err := h.ReadAcquired()
		Expect(err).NotTo(HaveOccurred())
		ExpectBytesEqual(data, input)
		Expect(h.References()).To(Equal(1))
	})

	It("concurrent release frees buffer exactly once", func() {
		const readers = 64
		buf.On("Free").Return(nil).Once()
		for i := 0; i < readers-1; i++ {
			Expect(h.Acquire()).To(Succeed())
		}
		start := make(chan struct{})
		var wg sync.WaitGroup
		wg.Add(readers)
		for i := 0; i < readers; i++ {
			go func() {
				defer GinkgoRecover()
				defer wg.Done()
				<-start
				Expect(h.Release()).To(Succeed())
			}()
		}
		close(start)
		wg.Wait()
		Expect(h.IsLive()).To(BeFalse())
		buf.AssertNumberOfCalls(GinkgoT(), "Free", 1)
	})

	It("concurrent unmatched releases never make count negative", func() {
		const releases = 32
		buf.On("Free").Return(nil).Once()
		var failed atomic.Int32
		var wg sync.WaitGroup
		wg.Add(releases)
		for i := 0; i < releases; i++ {
			go func() {
				defer GinkgoRecover()
				defer wg.Done()
				err := h.Release()
				if err != nil {
					Expect(err).To(MatchError(ErrIllegalState))
					failed.Add(1)
				}
			}()
		}
		wg.Wait()
		Expect(failed.Load()).To(BeEquivalentTo(releases - 1))
		Expect(h.References()).To(BeZero())
		buf.AssertNumberOfCalls(GinkgoT(), "Free", 1)
	})

	It("concurrent acquire and release", func() {
		const goroutines = 16
		buf.On("Free").Return(nil).Once()
		var wg sync.WaitGroup
		wg.Add(goroutines)
		for i := 0; i < goroutines; i++ {
			go func() {
				defer GinkgoRecover()
				defer wg.Done()
				for j := 0; j < 100; j++ {
					if h.Acquire() != nil {
						return
					}
					_, err := h.Read()
					Expect(err).NotTo(HaveOccurred())
					Expect(h.Release()).To(Succeed())
				}
			}()
		}
		Expect(h.Release()).To(Succeed())
		wg.Wait()
		Expect(h.IsLive()).To(BeFalse())
	})

	Context("expiry", func() {
		It("zero expiry never expires", func() {
			Expect(h.ExpiredAt(now.Add(1000 * time.Hour))).To(BeFalse())
		})
		It("expires after expiry passed", func() {
			h = NewHolder("key", buf, time.Second, now)
			Expect(h.ExpiredAt(now)).To(BeFalse())
			Expect(h.ExpiredAt(now.Add(time.Second))).To(BeFalse())
			Expect(h.ExpiredAt(now.Add(time.Second + 1))).To(BeTrue())
		})
		It("uses current time", func() {
			h = NewHolder("key", buf, time.Millisecond, now.Add(-time.Second))
			Expect(h.IsExpired()).To(BeTrue())
		})
	})

	It("touch counts hits", func() {
		later := now.Add(time.Minute)
		Expect(h.Touch(later)).To(BeEquivalentTo(1))
		Expect(h.Touch(later)).To(BeEquivalentTo(2))
		Expect(h.Hits()).To(BeEquivalentTo(2))
		Expect(h.LastAccess().Equal(later)).To(BeTrue())
	})

	Context("reader", func() {
		var r *Reader
		BeforeEach(func() {
			var err error
			r, err = h.NewReader()
			Expect(err).NotTo(HaveOccurred())
			Expect(h.References()).To(Equal(2))
		})

		It("reads value", func() {
			data, err := ioutil.ReadAll(r)
			Expect(err).NotTo(HaveOccurred())
			ExpectBytesEqual(data, input)
			Expect(r.Len()).To(BeZero())
		})

		It("writes value", func() {
			out := &bytes.Buffer{}
			r.Read(make([]byte, 10))
			n, err := r.WriteTo(out)
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(BeEquivalentTo(len(input) - 10))
			ExpectBytesEqual(out.Bytes(), input[10:])
		})

		It("keeps buffer after owner release", func() {
			Expect(h.Release()).To(Succeed())
			Expect(h.IsLive()).To(BeTrue())
			data, err := ioutil.ReadAll(r)
			Expect(err).NotTo(HaveOccurred())
			ExpectBytesEqual(data, input)

			buf.On("Free").Return(nil).Once()
			Expect(r.Close()).To(Succeed())
			Expect(h.IsLive()).To(BeFalse())
		})

		It("close is idempotent", func() {
			Expect(r.Close()).To(Succeed())
			Expect(r.Close()).To(Succeed())
			Expect(h.References()).To(Equal(1))
			_, err := r.Read(make([]byte, 1))
			Expect(err).To(MatchError(ErrIllegalState))
		})
	})

	Context("leak callback set", func() {
		var leak chan *Holder
		BeforeEach(func() {
			leak = make(chan *Holder, 1)
			h.SetLeakCallback(NotifyOnLeak(leak))
		})

		gcHolder := func() {
			h = nil
		}
		leaked := func() bool {
			runtime.GC()
			select {
			case <-leak:
				return true
			default:
				return false
			}
		}

		It("callback not called for released holder", func() {
			buf.On("Free").Return(nil).Once()
			Expect(h.Release()).To(Succeed())
			gcHolder()
			Consistently(leaked, 200*time.Millisecond).Should(BeFalse())
		})

		It("callback called for not released holder", func() {
			gcHolder()
			Eventually(leaked).Should(BeTrue())
		})

		It("callback called when reader was not closed", func() {
			_, err := h.NewReader()
			Expect(err).NotTo(HaveOccurred())
			Expect(h.Release()).To(Succeed())
			gcHolder()
			Eventually(leaked).Should(BeTrue())
		})
	})
})
