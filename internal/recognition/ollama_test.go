package recognition

import (
	"context"
	"encoding/json"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"
)

var _ = Describe("Ollama", func() {
	var (
		server     *ghttp.Server
		recognizer *Ollama
		rec        *Recognition
		err        error
	)

	BeforeEach(func() {
		server = ghttp.NewServer()
		recognizer, err = NewOllama(server.URL()+"/", "llava")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		server.Close()
	})

	JustBeforeEach(func() {
		rec, err = recognizer.Recognize(context.Background(), Image{Data: pngBytes(), ContentType: "image/png"})
	})

	When("the model returns lines", func() {
		BeforeEach(func() {
			content := `{"lines": [{"text": "KROGER", "confidence": 0.9}, {"text": "TOTAL 4.00", "confidence": 0.8}]}`
			server.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest(http.MethodPost, "/api/chat"),
				ghttp.VerifyContentType("application/json"),
				func(w http.ResponseWriter, r *http.Request) {
					var req ollamaChatRequest
					Expect(json.NewDecoder(r.Body).Decode(&req)).To(Succeed())
					Expect(req.Model).To(Equal("llava"))
					Expect(req.Messages).To(HaveLen(2))
					Expect(req.Messages[1].Images).To(HaveLen(1))
				},
				ghttp.RespondWithJSONEncoded(http.StatusOK, ollamaChatResponse{
					Message: ollamaMessage{Role: "assistant", Content: content},
					Done:    true,
				}),
			))
		})

		It("should not return an error", func() {
			Expect(err).NotTo(HaveOccurred())
		})

		It("should return the recognized lines", func() {
			Expect(rec.Lines).To(HaveLen(2))
			Expect(rec.FullText).To(Equal("KROGER\nTOTAL 4.00"))
		})
	})

	When("the API fails", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWith(http.StatusInternalServerError, "model not loaded"))
		})

		It("returns the error with the status", func() {
			Expect(err).To(MatchError(ContainSubstring("status 500")))
		})
	})

	When("the model returns garbage", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWithJSONEncoded(http.StatusOK, ollamaChatResponse{
				Message: ollamaMessage{Role: "assistant", Content: "I cannot read this receipt."},
			}))
		})

		It("returns a parse error", func() {
			Expect(err).To(MatchError(ContainSubstring("parsing recognized lines")))
		})
	})
})
