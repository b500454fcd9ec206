package receipt

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"

	"github.com/zombor/receipt-ocr/internal/pipeline"
	"github.com/zombor/receipt-ocr/internal/recognition"
)

// fakeRecognizer returns fixed lines for any image
type fakeRecognizer struct {
	lines []string
}

func (f *fakeRecognizer) Recognize(ctx context.Context, img recognition.Image) (*recognition.Recognition, error) {
	lines := make([]recognition.Line, 0, len(f.lines))
	for i, t := range f.lines {
		lines = append(lines, recognition.Line{
			Text:        t,
			BoundingBox: recognition.Rect{X: 0.1, Y: float64(i) * 0.05, Width: 0.8, Height: 0.03},
			Confidence:  0.9,
		})
	}
	return recognition.NewRecognition(lines), nil
}

func (f *fakeRecognizer) Close() error {
	return nil
}

var _ = Describe("Integration", func() {
	var (
		tempDir  string
		db       *BoltDB
		store    *LocalStorage
		server   *Server
		ghServer *ghttp.Server
	)

	BeforeEach(func() {
		tempDir = GinkgoT().TempDir()

		var err error
		db, err = NewBoltDB(filepath.Join(tempDir, "test.db"))
		Expect(err).NotTo(HaveOccurred())

		store, err = NewLocalStorage(filepath.Join(tempDir, "receipts"))
		Expect(err).NotTo(HaveOccurred())

		recognizer := &fakeRecognizer{lines: []string{
			"WALMART", "03/15/2024", "MILK  $3.50", "BREAD $2.25", "SUBTOTAL $5.75", "TAX $0.46", "TOTAL $6.21",
		}}
		service := NewService(db, pipeline.New(recognizer), store)
		server = NewServer(service, BasicAuth{})

		ghServer = ghttp.NewServer()
	})

	AfterEach(func() {
		if ghServer != nil {
			ghServer.Close()
		}
		if db != nil {
			db.Close()
		}
	})

	It("should upload a receipt and reconcile inventory with it", func() {
		ghServer.AppendHandlers(
			server.ServeHTTP, // create item
			server.ServeHTTP, // upload
			server.ServeHTTP, // reconcile
		)

		// --- Step 1: an inventory item without purchase details ---
		resp, err := http.Post(ghServer.URL()+"/api/inventory", "application/json", strings.NewReader(`{"name":"whole milk"}`))
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(http.StatusCreated))
		var item InventoryItem
		Expect(json.NewDecoder(resp.Body).Decode(&item)).To(Succeed())
		resp.Body.Close()

		// --- Step 2: upload the receipt ---
		body := &bytes.Buffer{}
		writer := multipart.NewWriter(body)
		part, err := writer.CreateFormFile("file", "receipt.png")
		Expect(err).NotTo(HaveOccurred())
		_, err = part.Write([]byte("fake png content"))
		Expect(err).NotTo(HaveOccurred())
		Expect(writer.Close()).To(Succeed())

		resp, err = http.Post(ghServer.URL()+"/api/receipts", writer.FormDataContentType(), body)
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(http.StatusCreated))
		respBody, err := io.ReadAll(resp.Body)
		Expect(err).NotTo(HaveOccurred())
		resp.Body.Close()

		var uploaded Receipt
		Expect(json.Unmarshal(respBody, &uploaded)).To(Succeed())
		Expect(*uploaded.Result.Vendor).To(Equal("Walmart"))
		Expect(uploaded.Result.Total.StringFixed(2)).To(Equal("6.21"))
		Expect(uploaded.Result.Tax.StringFixed(2)).To(Equal("0.46"))
		Expect(*uploaded.Result.Date).To(BeTemporally("==", time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)))
		Expect(uploaded.Result.Items).To(HaveLen(2))
		Expect(uploaded.Result.Categories).To(ContainElement("Grocery"))

		// the image and the record are both persisted
		_, err = store.Get(uploaded.Filename)
		Expect(err).NotTo(HaveOccurred())
		_, err = db.GetReceipt(uploaded.ID)
		Expect(err).NotTo(HaveOccurred())

		// --- Step 3: reconcile ---
		resp, err = http.Post(ghServer.URL()+"/api/receipts/"+uploaded.ID+"/reconcile", "application/json", nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		var reconciled []Reconciliation
		Expect(json.NewDecoder(resp.Body).Decode(&reconciled)).To(Succeed())
		resp.Body.Close()
		Expect(reconciled).To(HaveLen(1))

		saved, err := db.GetItem(item.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(saved.Brand).To(Equal("Walmart"))
		Expect(saved.PurchasePrice.StringFixed(2)).To(Equal("3.50"))
		Expect(saved.ReceiptID).To(Equal(uploaded.ID))
	})
})
