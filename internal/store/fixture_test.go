package store_test

import (
	"context"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"basegraph.app/reasoner/internal/model"
	"basegraph.app/reasoner/internal/store"
)

const oneItemCatalog = `
items:
  - id: A
    name: Housing A
    properties: {material: RF}
`

const twoItemCatalog = `
items:
  - id: A
    name: Housing A
    properties: {material: RF}
  - id: B
    name: Housing B
    properties: {material: SF}
`

var _ = Describe("FixtureStore", func() {
	var (
		ctx  context.Context
		path string
	)

	BeforeEach(func() {
		ctx = context.Background()
		path = filepath.Join(GinkgoT().TempDir(), "catalog.yaml")
		Expect(os.WriteFile(path, []byte(oneItemCatalog), 0o644)).To(Succeed())
	})

	itemCount := func(kg store.KnowledgeGraph) int {
		items, err := kg.ItemsByCategory(ctx, "")
		Expect(err).NotTo(HaveOccurred())
		return len(items)
	}

	It("fails to open a missing file", func() {
		_, err := store.OpenFixture(ctx, filepath.Join(filepath.Dir(path), "missing.yaml"), nil)
		Expect(err).To(HaveOccurred())
	})

	It("keeps a pinned snapshot stable across reloads", func() {
		fs, err := store.OpenFixture(ctx, path, nil)
		Expect(err).NotTo(HaveOccurred())

		pinned := store.Pin(fs)
		Expect(os.WriteFile(path, []byte(twoItemCatalog), 0o644)).To(Succeed())
		Expect(fs.Reload(ctx)).To(Succeed())

		Expect(itemCount(pinned)).To(Equal(1))
		Expect(itemCount(fs)).To(Equal(2))
	})

	It("keeps the previous catalog when a reload fails", func() {
		fs, err := store.OpenFixture(ctx, path, nil)
		Expect(err).NotTo(HaveOccurred())

		Expect(os.WriteFile(path, []byte("items: [{id: A}, {id: A}]"), 0o644)).To(Succeed())
		Expect(fs.Reload(ctx)).To(MatchError(ContainSubstring("duplicate item id")))

		items, err := fs.SearchItems(ctx, "housing a")
		Expect(err).NotTo(HaveOccurred())
		Expect(model.ItemIDs(items)).To(Equal([]string{"A"}))
	})

	It("reloads when the file changes", func() {
		fs, err := store.OpenFixture(ctx, path, nil)
		Expect(err).NotTo(HaveOccurred())

		watchCtx, cancel := context.WithCancel(ctx)
		done := make(chan error, 1)
		go func() { done <- fs.Watch(watchCtx) }()
		DeferCleanup(func() {
			cancel()
			Eventually(done).Should(Receive(BeNil()))
		})

		Eventually(func() int {
			Expect(os.WriteFile(path, []byte(twoItemCatalog), 0o644)).To(Succeed())
			return itemCount(fs)
		}).WithTimeout(5 * time.Second).WithPolling(100 * time.Millisecond).Should(Equal(2))
	})
})

var _ = Describe("Pin", func() {
	It("returns stores without snapshots unchanged", func() {
		mem, err := store.NewMemoryStore(context.Background(), &store.Catalog{}, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(store.Pin(mem)).To(BeIdenticalTo(mem))
	})
})
