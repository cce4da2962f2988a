package cache_test

import (
	"fmt"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/loopworkco/rewind/pkg/cache"
	"github.com/loopworkco/rewind/pkg/record"
)

func scored(id int64, score float64) record.ScoredRecord {
	return record.ScoredRecord{
		ContextRecord: record.ContextRecord{ID: id, Prompt: "p", Payload: "c"},
		Score:         score,
	}
}

var _ = Describe("Cache", func() {
	Describe("Key", func() {
		It("normalizes query casing and whitespace", func() {
			Expect(cache.Key("Fix  Auth   Bug", nil)).To(Equal(cache.Key("fix auth bug", nil)))
		})

		It("ignores file hint order", func() {
			a := cache.Key("q", []string{"b.go", "a.go"})
			b := cache.Key("q", []string{"a.go", "b.go"})
			Expect(a).To(Equal(b))
		})

		It("distinguishes different hint sets", func() {
			Expect(cache.Key("q", []string{"a.go"})).NotTo(Equal(cache.Key("q", []string{"b.go"})))
			Expect(cache.Key("q", nil)).NotTo(Equal(cache.Key("q", []string{"a.go"})))
		})
	})

	Describe("Get and Put", func() {
		var c *cache.Cache

		BeforeEach(func() {
			c = cache.New(cache.Config{Capacity: 3, TTL: 40 * time.Millisecond})
		})

		It("returns a miss for an absent key", func() {
			_, ok := c.Get("nope")
			Expect(ok).To(BeFalse())
		})

		It("returns the stored result set", func() {
			c.Put("k", []record.ScoredRecord{scored(1, 0.9), scored(2, 0.5)})

			got, ok := c.Get("k")
			Expect(ok).To(BeTrue())
			Expect(got).To(HaveLen(2))
			Expect(got[0].ID).To(Equal(int64(1)))
		})

		It("expires entries after the TTL", func() {
			c.Put("k", []record.ScoredRecord{scored(1, 0.9)})

			time.Sleep(50 * time.Millisecond)

			_, ok := c.Get("k")
			Expect(ok).To(BeFalse())
			Expect(c.Len()).To(BeZero())
		})

		It("returns a copy the caller cannot mutate", func() {
			c.Put("k", []record.ScoredRecord{scored(1, 0.9)})

			got, _ := c.Get("k")
			got[0].Score = 0

			again, _ := c.Get("k")
			Expect(again[0].Score).To(Equal(0.9))
		})

		It("evicts the oldest insertion at capacity", func() {
			for i := range 3 {
				c.Put(fmt.Sprintf("k%d", i), []record.ScoredRecord{scored(int64(i), 0.5)})
				time.Sleep(2 * time.Millisecond)
			}

			c.Put("k3", []record.ScoredRecord{scored(3, 0.5)})
			Expect(c.Len()).To(Equal(3))

			_, ok := c.Get("k0")
			Expect(ok).To(BeFalse())

			for i := 1; i <= 3; i++ {
				_, ok := c.Get(fmt.Sprintf("k%d", i))
				Expect(ok).To(BeTrue())
			}
		})

		It("overwrites in place without evicting", func() {
			for i := range 3 {
				c.Put(fmt.Sprintf("k%d", i), []record.ScoredRecord{scored(int64(i), 0.5)})
			}

			c.Put("k1", []record.ScoredRecord{scored(99, 0.8)})
			Expect(c.Len()).To(Equal(3))

			got, ok := c.Get("k1")
			Expect(ok).To(BeTrue())
			Expect(got[0].ID).To(Equal(int64(99)))
		})
	})
})
