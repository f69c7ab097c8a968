package scanning

import (
	"bytes"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// pngHeader is the PNG file signature followed by the start of an IHDR chunk
var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

var _ = Describe("ValidateImage", func() {
	var (
		img *Image
		err error
	)

	JustBeforeEach(func() {
		err = ValidateImage(img)
	})

	DescribeTable("supported types",
		func(contentType string) {
			Expect(ValidateImage(&Image{ContentType: contentType, Data: pngHeader, Size: int64(len(pngHeader))})).To(Succeed())
		},
		Entry("jpeg", "image/jpeg"),
		Entry("jpg", "image/jpg"),
		Entry("png", "image/png"),
		Entry("gif", "image/gif"),
		Entry("webp", "image/webp"),
		Entry("upper case", "IMAGE/PNG"),
		Entry("with parameters", "image/jpeg; charset=binary"),
	)

	DescribeTable("unsupported types",
		func(contentType string) {
			err := ValidateImage(&Image{ContentType: contentType, Data: []byte("data"), Size: 4})
			Expect(IsKind(err, KindInvalidFileType)).To(BeTrue())
		},
		Entry("pdf", "application/pdf"),
		Entry("heic", "image/heic"),
		Entry("svg", "image/svg+xml"),
		Entry("text", "text/plain"),
		Entry("empty", ""),
	)

	When("the image is nil", func() {
		BeforeEach(func() {
			img = nil
		})

		It("should fail with NoFileProvided", func() {
			Expect(IsKind(err, KindNoFileProvided)).To(BeTrue())
		})
	})

	When("the image has no bytes", func() {
		BeforeEach(func() {
			img = &Image{Filename: "empty.png", ContentType: "image/png"}
		})

		It("should fail with NoFileProvided", func() {
			Expect(IsKind(err, KindNoFileProvided)).To(BeTrue())
		})
	})

	When("the image is exactly the maximum size", func() {
		BeforeEach(func() {
			data := make([]byte, MaxImageSize)
			img = &Image{Filename: "big.jpg", ContentType: "image/jpeg", Data: data, Size: MaxImageSize}
		})

		It("should succeed", func() {
			Expect(err).NotTo(HaveOccurred())
		})
	})

	When("the image is one byte over the maximum size", func() {
		BeforeEach(func() {
			data := make([]byte, MaxImageSize+1)
			img = &Image{Filename: "big.jpg", ContentType: "image/jpeg", Data: data, Size: MaxImageSize + 1}
		})

		It("should fail with FileTooLarge", func() {
			Expect(IsKind(err, KindFileTooLarge)).To(BeTrue())
		})
	})

	When("an oversized file also has an unsupported type", func() {
		BeforeEach(func() {
			data := make([]byte, MaxImageSize+1)
			img = &Image{Filename: "big.pdf", ContentType: "application/pdf", Data: data}
		})

		It("should fail with FileTooLarge", func() {
			Expect(IsKind(err, KindFileTooLarge)).To(BeTrue())
		})
	})

	When("the declared size exceeds the maximum", func() {
		BeforeEach(func() {
			img = &Image{Filename: "big.png", ContentType: "image/png", Data: pngHeader, Size: MaxImageSize + 1}
		})

		It("should fail with FileTooLarge", func() {
			Expect(IsKind(err, KindFileTooLarge)).To(BeTrue())
		})
	})
})

var _ = Describe("DetectContentType", func() {
	It("should keep a declared type", func() {
		Expect(DetectContentType("image/WEBP", pngHeader)).To(Equal("image/webp"))
	})

	It("should sniff data declared as octet-stream", func() {
		Expect(DetectContentType("application/octet-stream", pngHeader)).To(Equal("image/png"))
	})

	It("should sniff data with no declared type", func() {
		Expect(DetectContentType("", pngHeader)).To(Equal("image/png"))
	})

	It("should not report plain text as an image", func() {
		Expect(DetectContentType("", bytes.Repeat([]byte("a"), 64))).NotTo(HavePrefix("image/"))
	})
})

var _ = Describe("BuildPrompt", func() {
	var prompt Prompt

	BeforeEach(func() {
		prompt = BuildPrompt(Image{ContentType: "Image/PNG", Data: []byte("abc")})
	})

	It("should build a data URI from the normalized type", func() {
		Expect(prompt.DataURI).To(Equal("data:image/png;base64,YWJj"))
	})

	It("should carry the raw and encoded image", func() {
		Expect(prompt.Data).To(Equal([]byte("abc")))
		Expect(prompt.Base64).To(Equal("YWJj"))
		Expect(prompt.MIMEType).To(Equal("image/png"))
	})

	It("should ask for the total amount and JSON only", func() {
		Expect(prompt.Text).To(ContainSubstring("Extract the TOTAL amount (not subtotals or individual items)"))
		Expect(prompt.Text).To(ContainSubstring("Return ONLY the JSON object"))
		for _, field := range []string{`"merchant"`, `"amount"`, `"currency"`, `"date"`, `"category"`} {
			Expect(prompt.Text).To(ContainSubstring(field))
		}
	})

	It("should be deterministic", func() {
		Expect(BuildPrompt(Image{ContentType: "image/png", Data: []byte("abc")})).To(Equal(prompt))
	})
})

var _ = Describe("SanitizeFilename", func() {
	DescribeTable("client filenames",
		func(input, expected string) {
			Expect(SanitizeFilename(input)).To(Equal(expected))
		},
		Entry("plain", "receipt.png", "receipt.png"),
		Entry("special characters", "lunch@cafe!(1).jpg", "lunchcafe1.jpg"),
		Entry("collapsed spaces", "my   grocery  run.webp", "my grocery run.webp"),
		Entry("unix path", "../../etc/passwd", "passwd"),
		Entry("windows path", `C:\Users\me\scan.jpeg`, "scan.jpeg"),
		Entry("nothing left", "@@@.gif", "receipt.gif"),
		Entry("empty", "", "receipt"),
		Entry("long name", strings.Repeat("a", 80)+".png", strings.Repeat("a", 50)+".png"),
	)
})
