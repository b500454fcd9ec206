package receipt

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"
)

var _ = Describe("Server", func() {
	var (
		db          *mockDB
		storage     *mockStorage
		processor   *mockProcessor
		service     *Service
		server      *Server
		auth        BasicAuth
		ghttpServer *ghttp.Server
	)

	setupServer := func() {
		if ghttpServer != nil {
			ghttpServer.Close()
		}
		service = NewServiceWithDeps(db, processor, storage,
			&mockIDGenerator{ids: []string{"new-id"}},
			&mockTimeSource{now: time.Date(2024, 3, 20, 10, 0, 0, 0, time.UTC)})
		server = NewServerWithMux(service, auth, http.NewServeMux())
		ghttpServer = ghttp.NewServer()
		ghttpServer.AppendHandlers(server.ServeHTTP)
	}

	readBody := func(resp *http.Response) string {
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		Expect(err).NotTo(HaveOccurred())
		return string(body)
	}

	upload := func(filename, contentType string, data []byte) *http.Response {
		var b bytes.Buffer
		writer := multipart.NewWriter(&b)
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
		if contentType != "" {
			h.Set("Content-Type", contentType)
		}
		part, err := writer.CreatePart(h)
		Expect(err).NotTo(HaveOccurred())
		part.Write(data)
		writer.Close()

		resp, err := http.Post(ghttpServer.URL()+"/api/receipts", writer.FormDataContentType(), &b)
		Expect(err).NotTo(HaveOccurred())
		return resp
	}

	BeforeEach(func() {
		db = newMockDB()
		storage = newMockStorage()
		processor = newMockProcessor()
		auth = BasicAuth{}
	})

	JustBeforeEach(func() {
		setupServer()
	})

	AfterEach(func() {
		if ghttpServer != nil {
			ghttpServer.Close()
			ghttpServer = nil
		}
	})

	Describe("handleListReceipts", func() {
		When("receipts exist", func() {
			BeforeEach(func() {
				db.receipts["id1"] = &Receipt{ID: "id1", Result: walmartResult()}
				db.receipts["id2"] = &Receipt{ID: "id2", Result: walmartResult()}
			})

			It("should return all receipts as JSON", func() {
				resp, err := http.Get(ghttpServer.URL() + "/api/receipts")
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusOK))
				Expect(resp.Header.Get("Content-Type")).To(Equal("application/json"))

				var receipts []*Receipt
				Expect(json.Unmarshal([]byte(readBody(resp)), &receipts)).To(Succeed())
				Expect(receipts).To(HaveLen(2))
			})
		})

		When("no receipts exist", func() {
			It("should return an empty array", func() {
				resp, err := http.Get(ghttpServer.URL() + "/api/receipts")
				Expect(err).NotTo(HaveOccurred())
				Expect(strings.TrimSpace(readBody(resp))).To(Equal("[]"))
			})
		})

		When("service returns an error", func() {
			BeforeEach(func() {
				db.listErr = errors.New("service error")
			})

			It("should return status Internal Server Error", func() {
				resp, err := http.Get(ghttpServer.URL() + "/api/receipts")
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusInternalServerError))
				Expect(readBody(resp)).To(ContainSubstring("Internal server error"))
			})
		})
	})

	Describe("handleUploadReceipt", func() {
		When("upload succeeds", func() {
			It("should return the processed receipt", func() {
				resp := upload("receipt.jpg", "image/jpeg", []byte("fake image data"))
				Expect(resp.StatusCode).To(Equal(http.StatusCreated))

				var receipt Receipt
				Expect(json.Unmarshal([]byte(readBody(resp)), &receipt)).To(Succeed())
				Expect(receipt.ID).To(Equal("new-id"))
				Expect(*receipt.Result.Vendor).To(Equal("Walmart"))
				Expect(receipt.Result.Total.StringFixed(2)).To(Equal("6.21"))
				Expect(db.receipts).To(HaveKey("new-id"))
			})
		})

		When("the part has no content type", func() {
			It("guesses it from the extension", func() {
				resp := upload("scan.PDF", "", []byte("%PDF-1.4"))
				Expect(resp.StatusCode).To(Equal(http.StatusCreated))
				resp.Body.Close()
				Expect(processor.received.ContentType).To(Equal("application/pdf"))
			})
		})

		When("processing fails", func() {
			BeforeEach(func() {
				processor.err = errors.New("no text found in image")
			})

			It("should return Unprocessable Entity with a JSON error", func() {
				resp := upload("blank.png", "image/png", []byte("blank"))
				Expect(resp.StatusCode).To(Equal(http.StatusUnprocessableEntity))
				Expect(resp.Header.Get("Content-Type")).To(Equal("application/json"))
				Expect(readBody(resp)).To(ContainSubstring("no text found in image"))
			})
		})

		When("no file is sent", func() {
			It("should return Bad Request", func() {
				var b bytes.Buffer
				writer := multipart.NewWriter(&b)
				writer.WriteField("note", "nothing here")
				writer.Close()

				resp, err := http.Post(ghttpServer.URL()+"/api/receipts", writer.FormDataContentType(), &b)
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
				Expect(readBody(resp)).To(ContainSubstring("No file was selected"))
			})
		})
	})

	Describe("handleGetReceipt", func() {
		BeforeEach(func() {
			db.receipts["id1"] = &Receipt{ID: "id1", Result: walmartResult()}
		})

		It("should return the receipt", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/receipts/id1")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(readBody(resp)).To(ContainSubstring(`"vendor":"Walmart"`))
		})

		It("should return Not Found for an unknown ID", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/receipts/unknown")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
			resp.Body.Close()
		})
	})

	Describe("handleGetReceiptFile", func() {
		BeforeEach(func() {
			db.receipts["id1"] = &Receipt{ID: "id1", Filename: "id1_scan.png", ContentType: "image/png"}
			storage.files["id1_scan.png"] = []byte("png bytes")
		})

		It("should return the original image", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/receipts/id1/file")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Content-Type")).To(Equal("image/png"))
			Expect(readBody(resp)).To(Equal("png bytes"))
		})
	})

	Describe("handleDeleteReceipt", func() {
		BeforeEach(func() {
			db.receipts["id1"] = &Receipt{ID: "id1", Filename: "id1_scan.png"}
			storage.files["id1_scan.png"] = []byte("png bytes")
		})

		It("should delete the receipt", func() {
			req, err := http.NewRequest(http.MethodDelete, ghttpServer.URL()+"/api/receipts/id1", nil)
			Expect(err).NotTo(HaveOccurred())
			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
			Expect(db.receipts).To(BeEmpty())
			Expect(storage.files).To(BeEmpty())
		})

		It("should return Not Found for an unknown ID", func() {
			req, err := http.NewRequest(http.MethodDelete, ghttpServer.URL()+"/api/receipts/unknown", nil)
			Expect(err).NotTo(HaveOccurred())
			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})
	})

	Describe("handleReconcile", func() {
		BeforeEach(func() {
			db.receipts["id1"] = &Receipt{ID: "id1", Result: walmartResult()}
			db.items["item-1"] = &InventoryItem{ID: "item-1", Name: "Bread"}
		})

		It("should return the reconciled items", func() {
			resp, err := http.Post(ghttpServer.URL()+"/api/receipts/id1/reconcile", "application/json", nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var reconciled []Reconciliation
			Expect(json.Unmarshal([]byte(readBody(resp)), &reconciled)).To(Succeed())
			Expect(reconciled).To(HaveLen(1))
			Expect(reconciled[0].ItemID).To(Equal("item-1"))
			Expect(db.items["item-1"].PurchasePrice.StringFixed(2)).To(Equal("2.25"))
		})

		It("should return Not Found for an unknown receipt", func() {
			resp, err := http.Post(ghttpServer.URL()+"/api/receipts/unknown/reconcile", "application/json", nil)
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})
	})

	Describe("handleCreateItem", func() {
		It("should create the item", func() {
			resp, err := http.Post(ghttpServer.URL()+"/api/inventory", "application/json",
				strings.NewReader(`{"name":"Cordless Drill","notes":"garage"}`))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusCreated))

			var item InventoryItem
			Expect(json.Unmarshal([]byte(readBody(resp)), &item)).To(Succeed())
			Expect(item.ID).To(Equal("new-id"))
			Expect(db.items).To(HaveKey("new-id"))
		})

		It("should reject a missing name", func() {
			resp, err := http.Post(ghttpServer.URL()+"/api/inventory", "application/json", strings.NewReader(`{"brand":"Acme"}`))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			Expect(readBody(resp)).To(ContainSubstring("item name is required"))
		})

		It("should reject invalid JSON", func() {
			resp, err := http.Post(ghttpServer.URL()+"/api/inventory", "application/json", strings.NewReader(`{`))
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("handleListItems", func() {
		BeforeEach(func() {
			db.items["b"] = &InventoryItem{ID: "b", Name: "Toaster"}
			db.items["a"] = &InventoryItem{ID: "a", Name: "Blender"}
		})

		It("should return items sorted by name", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/inventory")
			Expect(err).NotTo(HaveOccurred())

			var items []*InventoryItem
			Expect(json.Unmarshal([]byte(readBody(resp)), &items)).To(Succeed())
			Expect(items).To(HaveLen(2))
			Expect(items[0].Name).To(Equal("Blender"))
		})
	})

	Describe("handleGetItem", func() {
		BeforeEach(func() {
			db.items["item-1"] = &InventoryItem{ID: "item-1", Name: "Cordless Drill", Brand: "Home Depot"}
		})

		It("should return the item", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/inventory/item-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var item InventoryItem
			Expect(json.Unmarshal([]byte(readBody(resp)), &item)).To(Succeed())
			Expect(item.Brand).To(Equal("Home Depot"))
		})

		It("should return Not Found for an unknown ID", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/inventory/unknown")
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})
	})

	Describe("handleMatch", func() {
		It("should return the best candidate and all similarities", func() {
			q := url.Values{}
			q.Set("q", "Bred")
			q.Add("candidate", "Milk")
			q.Add("candidate", "Bread")

			resp, err := http.Get(ghttpServer.URL() + "/api/match?" + q.Encode())
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var body struct {
				Match struct {
					Candidate string `json:"candidate"`
					Kind      string `json:"kind"`
				} `json:"match"`
				Accepted   bool `json:"accepted"`
				Candidates []struct {
					Candidate  string  `json:"candidate"`
					Similarity float64 `json:"similarity"`
				} `json:"candidates"`
			}
			Expect(json.Unmarshal([]byte(readBody(resp)), &body)).To(Succeed())
			Expect(body.Match.Candidate).To(Equal("Bread"))
			Expect(body.Match.Kind).To(Equal("fuzzy"))
			Expect(body.Accepted).To(BeTrue())
			Expect(body.Candidates).To(HaveLen(2))
			Expect(body.Candidates[1].Similarity).To(BeNumerically("~", 0.8, 1e-9))
		})

		It("should require a query and candidates", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/match?q=milk")
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("corsMiddleware", func() {
		It("should answer preflight requests", func() {
			req, err := http.NewRequest(http.MethodOptions, ghttpServer.URL()+"/api/receipts", nil)
			Expect(err).NotTo(HaveOccurred())
			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
			Expect(resp.Header.Get("Access-Control-Allow-Origin")).To(Equal("*"))
		})
	})

	Describe("authenticate", func() {
		BeforeEach(func() {
			auth = BasicAuth{Username: "admin", Password: "secret"}
		})

		It("should accept valid credentials", func() {
			req, _ := http.NewRequest(http.MethodGet, "/", nil)
			req.SetBasicAuth("admin", "secret")
			Expect(server.authenticate(req)).To(BeTrue())
		})

		It("should reject a wrong password", func() {
			req, _ := http.NewRequest(http.MethodGet, "/", nil)
			req.SetBasicAuth("admin", "wrong")
			Expect(server.authenticate(req)).To(BeFalse())
		})

		It("should reject missing credentials", func() {
			req, _ := http.NewRequest(http.MethodGet, "/", nil)
			Expect(server.authenticate(req)).To(BeFalse())
		})
	})

	Describe("requireAuth", func() {
		BeforeEach(func() {
			auth = BasicAuth{Username: "admin", Password: "secret"}
		})

		It("should return Unauthorized with a challenge", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/receipts")
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
			Expect(resp.Header.Get("WWW-Authenticate")).To(Equal(`Basic realm="Receipt OCR"`))
		})

		It("should pass authenticated requests through", func() {
			req, err := http.NewRequest(http.MethodGet, ghttpServer.URL()+"/api/inventory", nil)
			Expect(err).NotTo(HaveOccurred())
			req.SetBasicAuth("admin", "secret")
			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
		})
	})
})
