package pantry

import (
	"context"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"
)

var _ = Describe("S3Storage", func() {
	var (
		server  *ghttp.Server
		storage *S3Storage
		ctx     context.Context
	)

	BeforeEach(func() {
		server = ghttp.NewServer()
		ctx = context.Background()
		client := s3.New(s3.Options{
			Region:       "us-east-1",
			BaseEndpoint: aws.String(server.URL()),
			UsePathStyle: true,
			Credentials:  credentials.NewStaticCredentialsProvider("key", "secret", ""),
		})
		storage = NewS3StorageWithClient(client, "pantry", "/receipts/")
	})

	AfterEach(func() {
		server.Close()
	})

	Describe("Save", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest(http.MethodPut, "/pantry/receipts/id-1_milk.jpg"),
				ghttp.RespondWith(http.StatusOK, ""),
			))
		})

		It("uploads under the prefix and returns the bare key", func() {
			key, err := storage.Save(ctx, "id-1_milk.jpg", []byte("image"))
			Expect(err).NotTo(HaveOccurred())
			Expect(key).To(Equal("id-1_milk.jpg"))
			Expect(server.ReceivedRequests()).To(HaveLen(1))
		})
	})

	Describe("Get", func() {
		When("the object exists", func() {
			BeforeEach(func() {
				server.AppendHandlers(ghttp.CombineHandlers(
					ghttp.VerifyRequest(http.MethodGet, "/pantry/receipts/id-1_milk.jpg"),
					ghttp.RespondWith(http.StatusOK, "image"),
				))
			})

			It("returns the object body", func() {
				data, err := storage.Get(ctx, "id-1_milk.jpg")
				Expect(err).NotTo(HaveOccurred())
				Expect(string(data)).To(Equal("image"))
			})
		})

		When("the object does not exist", func() {
			BeforeEach(func() {
				server.AppendHandlers(ghttp.CombineHandlers(
					ghttp.VerifyRequest(http.MethodGet, "/pantry/receipts/missing.jpg"),
					ghttp.RespondWith(http.StatusNotFound, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message></Error>`,
						http.Header{"Content-Type": []string{"application/xml"}}),
				))
			})

			It("returns the error", func() {
				_, err := storage.Get(ctx, "missing.jpg")
				Expect(err).To(MatchError(ContainSubstring("reading object")))
			})
		})
	})

	Describe("Delete", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest(http.MethodDelete, "/pantry/receipts/id-1_milk.jpg"),
				ghttp.RespondWith(http.StatusNoContent, ""),
			))
		})

		It("deletes the object", func() {
			Expect(storage.Delete(ctx, "id-1_milk.jpg")).To(Succeed())
			Expect(server.ReceivedRequests()).To(HaveLen(1))
		})
	})
})

var _ = Describe("NewS3Storage", func() {
	It("requires a bucket", func() {
		_, err := NewS3Storage(context.Background(), S3Config{Region: "us-east-1"})
		Expect(err).To(MatchError(ContainSubstring("bucket is required")))
	})
})
