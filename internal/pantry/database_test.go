package pantry

import (
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/pantry-tracker/internal/lineitems"
)

var _ = Describe("BoltDB", func() {
	var (
		tmpDir string
		db     *BoltDB
		base   time.Time
	)

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
		var err error
		db, err = NewBoltDB(filepath.Join(tmpDir, "test.db"))
		Expect(err).NotTo(HaveOccurred())
		base = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	})

	AfterEach(func() {
		if db != nil {
			db.Close()
		}
	})

	Describe("scans", func() {
		var scan *Scan

		BeforeEach(func() {
			scan = &Scan{
				ID:          "scan-1",
				Filename:    "scan-1_receipt.jpg",
				ContentType: "image/jpeg",
				Text:        "MILK GAL 3.99",
				Items: []lineitems.Item{
					{Name: "MILK GAL", Quantity: "1", Price: "3.99", Category: lineitems.Fridge, Line: 1},
				},
				Total:     "3.99",
				CreatedAt: base,
			}
			Expect(db.SaveScan(scan)).To(Succeed())
		})

		It("round-trips a scan with its items", func() {
			got, err := db.GetScan("scan-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Items).To(Equal(scan.Items))
			Expect(got.Total).To(Equal("3.99"))
			Expect(got.CreatedAt.Equal(base)).To(BeTrue())
		})

		It("returns ErrNotFound for an unknown scan", func() {
			_, err := db.GetScan("missing")
			Expect(err).To(MatchError(ErrNotFound))
		})

		It("lists scans newest first", func() {
			Expect(db.SaveScan(&Scan{ID: "scan-2", CreatedAt: base.Add(time.Hour)})).To(Succeed())
			Expect(db.SaveScan(&Scan{ID: "scan-0", CreatedAt: base.Add(-time.Hour)})).To(Succeed())

			scans, err := db.ListScans()
			Expect(err).NotTo(HaveOccurred())
			Expect(scans).To(HaveLen(3))
			Expect(scans[0].ID).To(Equal("scan-2"))
			Expect(scans[1].ID).To(Equal("scan-1"))
			Expect(scans[2].ID).To(Equal("scan-0"))
		})

		It("deletes a scan", func() {
			Expect(db.DeleteScan("scan-1")).To(Succeed())
			_, err := db.GetScan("scan-1")
			Expect(err).To(MatchError(ErrNotFound))
		})
	})

	Describe("inventory", func() {
		BeforeEach(func() {
			expires := base.Add(48 * time.Hour)
			Expect(db.SaveItem(&InventoryItem{ID: "a", Location: LocationFridge, Name: "MILK", Quantity: "1", DateAdded: base.Add(time.Minute), ExpiresAt: &expires})).To(Succeed())
			Expect(db.SaveItem(&InventoryItem{ID: "b", Location: LocationFridge, Name: "EGGS", Quantity: "12", DateAdded: base})).To(Succeed())
			Expect(db.SaveItem(&InventoryItem{ID: "c", Location: LocationPantry, Name: "RICE", Quantity: "1", DateAdded: base})).To(Succeed())
		})

		It("keeps items apart by location", func() {
			fridge, err := db.ListItems(LocationFridge)
			Expect(err).NotTo(HaveOccurred())
			Expect(fridge).To(HaveLen(2))

			freezer, err := db.ListItems(LocationFreezer)
			Expect(err).NotTo(HaveOccurred())
			Expect(freezer).To(BeEmpty())
		})

		It("lists items oldest first", func() {
			fridge, err := db.ListItems(LocationFridge)
			Expect(err).NotTo(HaveOccurred())
			Expect(fridge[0].Name).To(Equal("EGGS"))
			Expect(fridge[1].Name).To(Equal("MILK"))
		})

		It("keeps the expiry date", func() {
			item, err := db.GetItem(LocationFridge, "a")
			Expect(err).NotTo(HaveOccurred())
			Expect(item.ExpiresAt).NotTo(BeNil())
			Expect(item.ExpiresAt.Equal(base.Add(48 * time.Hour))).To(BeTrue())
		})

		It("lists items at every location", func() {
			items, err := db.ListAllItems()
			Expect(err).NotTo(HaveOccurred())
			Expect(items).To(HaveLen(3))
		})

		It("does not find an item at another location", func() {
			_, err := db.GetItem(LocationPantry, "a")
			Expect(err).To(MatchError(ErrNotFound))
		})

		It("deletes an item", func() {
			Expect(db.DeleteItem(LocationFridge, "a")).To(Succeed())
			_, err := db.GetItem(LocationFridge, "a")
			Expect(err).To(MatchError(ErrNotFound))
		})

		It("returns ErrNotFound when deleting a missing item", func() {
			Expect(db.DeleteItem(LocationFridge, "missing")).To(MatchError(ErrNotFound))
		})

		It("rejects an unknown location", func() {
			err := db.SaveItem(&InventoryItem{ID: "d", Location: Location("garage"), Name: "PAINT"})
			Expect(err).To(MatchError(ErrInvalidLocation))
		})
	})

	When("the database is reopened", func() {
		It("keeps its data", func() {
			Expect(db.SaveItem(&InventoryItem{ID: "a", Location: LocationSpices, Name: "CUMIN", DateAdded: base})).To(Succeed())
			Expect(db.Close()).To(Succeed())

			var err error
			db, err = NewBoltDB(filepath.Join(tmpDir, "test.db"))
			Expect(err).NotTo(HaveOccurred())

			items, err := db.ListItems(LocationSpices)
			Expect(err).NotTo(HaveOccurred())
			Expect(items).To(HaveLen(1))
		})
	})
})
