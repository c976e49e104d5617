// Package assistant turns retrieved product context into a Vietnamese sales answer.
package assistant

import (
	"strings"

	"github.com/spherical-ai/spherical/libs/shop-assistant/internal/catalog"
)

// SystemMessage frames the model as a sales assistant restricted to the supplied product list.
const SystemMessage = "Bạn là trợ lý bán hàng. Người dùng sẽ hỏi về sản phẩm và bạn sẽ cung cấp thông tin về sản phẩm dựa trên danh sách sản phẩm đã cho. " +
	"Hãy đọc danh sách sản phẩm bên dưới và tìm những sản phẩm phù hợp với tiêu chí của họ. " +
	"❗ Tất cả câu trả lời phải bằng TIẾNG VIỆT, bao gồm các giá trị như màu sắc, trạng thái, thuộc tính kỹ thuật. " +
	"Tự động dịch các giá trị từ tiếng Anh sang tiếng Việt một cách chính xác theo ngữ cảnh. " +
	"Bắt buộc chỉ sử dụng thông tin trong danh sách sản phẩm, không bịa đặt, không suy đoán thêm."

// Greeting is the first message shown by interactive chat surfaces.
const Greeting = "Xin chào! Tôi là trợ lý bán hàng, tôi sẽ giúp bạn giải đáp mọi thắc mắc về điện thoại."

// lineBreak is a markdown hard break.
const lineBreak = "  \n"

// refusalLine is the exact line the model must answer with when nothing fits.
const refusalLine = catalog.NoMatchMessage

var answerRules = []string{
	"🔁 Lưu ý QUAN TRỌNG:",
	"- Bạn phải tự động dịch các giá trị từ tiếng Anh sang tiếng Việt một cách chính xác theo ngữ cảnh và trả lời toàn bộ bằng TIẾNG VIỆT.",
	"- Bạn chỉ được sử dụng thông tin trong danh sách sản phẩm để trả lời.",
	"- Nếu có nhiều sản phẩm cùng tên, CHỈ chọn 1 bản đại diện (loại bỏ bản khác).",
	"- **Bạn PHẢI lọc sản phẩm DỰA TRÊN TIÊU CHÍ người dùng đưa ra.**",
	"- **Không được liệt kê sản phẩm nào KHÔNG PHÙ HỢP với yêu cầu.**",
	"- ❌ Nếu KHÔNG có bất kỳ sản phẩm nào thỏa mãn TẤT CẢ tiêu chí người dùng đưa ra, bạn PHẢI trả lời đúng dòng sau: '" + refusalLine + "' và KHÔNG TRẢ LỜI GÌ THÊM.",
	"- ✅ Nếu có sản phẩm phù hợp, chỉ liệt kê duy nhất các sản phẩm thỏa mãn đầy đủ tiêu chí. KHÔNG được liệt kê sản phẩm gần giống hoặc thiếu tiêu chí.",
	"❗ Vui lòng TRẢ LỜI BẰNG TIẾNG VIỆT, GIỮ ĐÚNG FORMAT SAU cho mỗi sản phẩm:",
	"📦 Tên sản phẩm: ...",
	"🎨 Màu: ...",
	"💾 RAM: ...",
	"💸 Giá: ...",
	"📋 Trạng thái: ...",
	"⚙️ Thuộc tính khác:" + lineBreak + "  - ..." + lineBreak,
	"⚠️ Yêu cầu bắt buộc:",
	"- Mỗi trường nằm trên 1 dòng riêng biệt",
	"- Giữ nguyên emoji ở đầu dòng",
	"- KHÔNG gộp nhiều trường vào cùng dòng",
	"- KHÔNG được bỏ qua bất kỳ thông tin nào có trong danh sách",
	"- KHÔNG được thêm thông tin không có trong danh sách",
	"- KHÔNG dùng markdown bảng hay danh sách có chấm đầu dòng (•)",
	"- KHÔNG rút gọn nội dung hoặc thay đổi cấu trúc trình bày",
	"- Nếu có nhiều sản phẩm cùng tên, bạn CHỈ được giữ lại 1 sản phẩm đại diện duy nhất.",
	"- KHÔNG được đưa các biến thể khác cùng tên vào kết quả, dù có khác màu hay cấu hình.",
	"- KHÔNG được vi phạm yêu cầu này. Nếu vi phạm, bạn sẽ bị coi là trả lời sai.",
}

// BuildAnswerPrompt renders the user turn sent to the answer model: the
// question, the product context and the output rules.
func BuildAnswerPrompt(query, productContext string) string {
	var b strings.Builder
	b.WriteString("Câu hỏi của người dùng: ")
	b.WriteString(query)
	b.WriteString(lineBreak + lineBreak)
	b.WriteString("Danh sách sản phẩm:" + lineBreak)
	b.WriteString(productContext)
	b.WriteString(lineBreak + lineBreak)
	for _, rule := range answerRules {
		b.WriteString(rule)
		b.WriteString(lineBreak)
	}
	return b.String()
}
