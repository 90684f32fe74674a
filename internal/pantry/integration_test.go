package pantry_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/pantry-tracker/internal/lineitems"
	"github.com/zombor/pantry-tracker/internal/pantry"
)

// stubScanner returns fixed text for any image
type stubScanner struct {
	text string
}

func (s stubScanner) ExtractText(context.Context, []byte, string) (string, error) {
	return s.text, nil
}

func (s stubScanner) Close() error { return nil }

var _ = Describe("Scan to inventory", func() {
	var (
		db     *pantry.BoltDB
		srv    *httptest.Server
		tmpDir string
	)

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()

		var err error
		db, err = pantry.NewBoltDB(filepath.Join(tmpDir, "pantry.db"))
		Expect(err).NotTo(HaveOccurred())

		storage, err := pantry.NewLocalStorage(filepath.Join(tmpDir, "receipts"))
		Expect(err).NotTo(HaveOccurred())

		scanner := stubScanner{text: "GREAT VALUE\nMILK GAL 3.99\nSHREDDED CHEESE 2.50\nFROZEN PIZZA 5.00\nGROUND CUMIN 1.25\nTAX 0.40\nTOTAL 13.14\n"}
		service := pantry.NewService(db, scanner, storage, nil)
		srv = httptest.NewServer(pantry.NewServer(service, pantry.BasicAuth{}))
	})

	AfterEach(func() {
		srv.Close()
		db.Close()
	})

	It("scans a receipt, commits the reviewed items and lists them by location", func() {
		By("uploading the receipt")
		body := &bytes.Buffer{}
		writer := multipart.NewWriter(body)
		part, err := writer.CreateFormFile("file", "receipt.jpg")
		Expect(err).NotTo(HaveOccurred())
		_, err = part.Write([]byte("fake image"))
		Expect(err).NotTo(HaveOccurred())
		Expect(writer.Close()).To(Succeed())

		resp, err := http.Post(srv.URL+"/api/scans", writer.FormDataContentType(), body)
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(http.StatusCreated))

		var scan pantry.Scan
		Expect(json.NewDecoder(resp.Body).Decode(&scan)).To(Succeed())
		resp.Body.Close()
		Expect(scan.Total).To(Equal("12.74"))

		names := make([]string, 0, len(scan.Items))
		for _, item := range scan.Items {
			names = append(names, item.Name)
		}
		Expect(names).To(Equal([]string{"GREAT VALUE", "MILK GAL", "SHREDDED CHEESE", "FROZEN PIZZA", "GROUND CUMIN"}))

		By("fetching the stored image")
		resp, err = http.Get(srv.URL + "/api/scans/" + scan.ID + "/file")
		Expect(err).NotTo(HaveOccurred())
		data, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(Equal("fake image"))

		By("committing every item but the store name")
		reqs := make([]pantry.CommitRequest, 0)
		for _, item := range scan.Items[1:] {
			reqs = append(reqs, pantry.CommitRequest{Name: item.Name, Quantity: item.Quantity, Category: item.Category})
		}
		payload, err := json.Marshal(map[string][]pantry.CommitRequest{"items": reqs})
		Expect(err).NotTo(HaveOccurred())
		resp, err = http.Post(srv.URL+"/api/inventory", "application/json", bytes.NewReader(payload))
		Expect(err).NotTo(HaveOccurred())
		resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusOK))

		By("listing each location")
		expect := map[pantry.Location]string{
			pantry.LocationFridge:  "SHREDDED CHEESE",
			pantry.LocationFreezer: "FROZEN PIZZA",
			pantry.LocationSpices:  "GROUND CUMIN",
		}
		for loc, name := range expect {
			resp, err := http.Get(srv.URL + "/api/inventory/" + string(loc))
			Expect(err).NotTo(HaveOccurred())
			var items []*pantry.InventoryItem
			Expect(json.NewDecoder(resp.Body).Decode(&items)).To(Succeed())
			resp.Body.Close()
			Expect(items).To(ContainElement(HaveField("Name", name)), "location %s", loc)
		}

		fridge, err := db.ListItems(pantry.LocationFridge)
		Expect(err).NotTo(HaveOccurred())
		Expect(fridge).To(HaveLen(2))
		Expect(scan.Items[1].Category).To(Equal(lineitems.Fridge))
	})
})
