package scanning

import (
	"context"
	"encoding/json"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"
	"google.golang.org/api/option"
)

var _ = Describe("Ollama", func() {
	var (
		server  *ghttp.Server
		scanner *Ollama
		text    string
		err     error
	)

	BeforeEach(func() {
		server = ghttp.NewServer()
		scanner, err = NewOllama(server.URL()+"/", "test-model")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		server.Close()
	})

	JustBeforeEach(func() {
		text, err = scanner.ExtractText(context.Background(), pngBytes(), "image/png")
	})

	When("the model transcribes the receipt", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest("POST", "/api/chat"),
				ghttp.VerifyContentType("application/json"),
				func(w http.ResponseWriter, r *http.Request) {
					var req ollamaChatRequest
					Expect(json.NewDecoder(r.Body).Decode(&req)).To(Succeed())
					Expect(req.Model).To(Equal("test-model"))
					Expect(req.Stream).To(BeFalse())
					Expect(req.Messages).To(HaveLen(2))
					Expect(req.Messages[1].Images).To(HaveLen(1))
				},
				ghttp.RespondWithJSONEncoded(http.StatusOK, map[string]any{
					"message": map[string]string{"role": "assistant", "content": "```\nMILK 1 GAL 3.99\nTOTAL 3.99\n```"},
					"done":    true,
				}),
			))
		})

		It("should not return an error", func() {
			Expect(err).NotTo(HaveOccurred())
		})

		It("returns the cleaned transcript", func() {
			Expect(text).To(Equal("MILK 1 GAL 3.99\nTOTAL 3.99"))
		})
	})

	When("the model finds no text", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWithJSONEncoded(http.StatusOK, map[string]any{
				"message": map[string]string{"role": "assistant", "content": "NO_TEXT"},
				"done":    true,
			}))
		})

		It("returns ErrNoText", func() {
			Expect(err).To(MatchError(ErrNoText))
		})
	})

	When("the API fails", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWith(http.StatusInternalServerError, "model not loaded"))
		})

		It("returns the error", func() {
			Expect(err).To(MatchError(ContainSubstring("status 500")))
			Expect(err).To(MatchError(ContainSubstring("model not loaded")))
		})
	})
})

var _ = Describe("Vision", func() {
	var (
		server  *ghttp.Server
		scanner *Vision
		text    string
		err     error
	)

	BeforeEach(func() {
		server = ghttp.NewServer()
		scanner, err = NewVision("test-key", option.WithEndpoint(server.URL()+"/"))
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		server.Close()
	})

	JustBeforeEach(func() {
		text, err = scanner.ExtractText(context.Background(), jpegBytes(), "image/jpeg")
	})

	When("text is detected", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest("POST", "/v1/images:annotate"),
				func(w http.ResponseWriter, r *http.Request) {
					var req struct {
						Requests []struct {
							Image struct {
								Content string `json:"content"`
							} `json:"image"`
							Features []struct {
								Type string `json:"type"`
							} `json:"features"`
						} `json:"requests"`
					}
					Expect(json.NewDecoder(r.Body).Decode(&req)).To(Succeed())
					Expect(req.Requests).To(HaveLen(1))
					Expect(req.Requests[0].Image.Content).NotTo(BeEmpty())
					Expect(req.Requests[0].Features[0].Type).To(Equal("DOCUMENT_TEXT_DETECTION"))
				},
				ghttp.RespondWithJSONEncoded(http.StatusOK, map[string]any{
					"responses": []map[string]any{
						{"fullTextAnnotation": map[string]string{"text": "MILK 1 GAL 3.99\nTOTAL 3.99\n"}},
					},
				}),
			))
		})

		It("should not return an error", func() {
			Expect(err).NotTo(HaveOccurred())
		})

		It("returns the full text annotation", func() {
			Expect(text).To(Equal("MILK 1 GAL 3.99\nTOTAL 3.99"))
		})
	})

	When("only text annotations are returned", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWithJSONEncoded(http.StatusOK, map[string]any{
				"responses": []map[string]any{
					{"textAnnotations": []map[string]string{{"description": "EGGS 2.49"}, {"description": "EGGS"}}},
				},
			}))
		})

		It("uses the first annotation", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(text).To(Equal("EGGS 2.49"))
		})
	})

	When("no text is detected", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWithJSONEncoded(http.StatusOK, map[string]any{
				"responses": []map[string]any{{}},
			}))
		})

		It("returns ErrNoText", func() {
			Expect(err).To(MatchError(ErrNoText))
		})
	})

	When("the image is rejected", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWithJSONEncoded(http.StatusOK, map[string]any{
				"responses": []map[string]any{
					{"error": map[string]any{"code": 3, "message": "Bad image data."}},
				},
			}))
		})

		It("returns the error", func() {
			Expect(err).To(MatchError(ContainSubstring("Bad image data.")))
		})
	})

	When("the API call fails", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWith(http.StatusForbidden, `{"error":{"code":403,"message":"API key not valid"}}`))
		})

		It("returns the error", func() {
			Expect(err).To(MatchError(ContainSubstring("calling vision API")))
		})
	})
})

var _ = Describe("NewVision", func() {
	It("requires an API key", func() {
		_, err := NewVision("")
		Expect(err).To(MatchError(ContainSubstring("api key is required")))
	})
})

var _ = Describe("NewGemini", func() {
	It("requires an API key", func() {
		_, err := NewGemini("", "")
		Expect(err).To(MatchError(ContainSubstring("api key is required")))
	})
})
