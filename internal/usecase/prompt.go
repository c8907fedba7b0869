package usecase

import (
	"fmt"
	"strings"

	"quizrag/internal/domain"
)

const systemPromptWithContext = `Bạn là AI chuyên trả lời câu hỏi trắc nghiệm tiếng Việt với độ chính xác cao.

NGUỒN DUY NHẤT ĐƯỢC PHÉP SỬ DỤNG:
- Thông tin trong phần "THÔNG TIN THAM KHẢO TỪ CƠ SỞ KIẾN THỨC" bên dưới.
- Không sử dụng kiến thức bên ngoài hoặc suy đoán vượt quá dữ liệu đã cho.

THÔNG TIN THAM KHẢO TỪ CƠ SỞ KIẾN THỨC:
%s

QUY TẮC BẮT BUỘC:
1. Đọc kỹ câu hỏi và TẤT CẢ các phương án trả lời.
2. Loại trừ các phương án mâu thuẫn hoặc không được hỗ trợ bởi dữ liệu tham khảo.
3. Chỉ chọn phương án có bằng chứng phù hợp và trực tiếp nhất từ dữ liệu.
4. Nếu nhiều phương án gần đúng, chọn phương án CHÍNH XÁC NHẤT.

ĐỊNH DẠNG TRẢ LỜI:
- Chỉ trả lời DUY NHẤT MỘT KÝ TỰ IN HOA: A, B, C, D, ...
- KHÔNG giải thích, KHÔNG thêm ký tự hoặc văn bản nào khác.
- Nếu thông tin không đầy đủ, hãy chọn phương án phù hợp nhất, KHÔNG bỏ trống.`

const systemPromptNoContext = `Bạn là hệ thống trả lời câu hỏi trắc nghiệm.

HƯỚNG DẪN:
1. Đọc kỹ câu hỏi và tất cả lựa chọn
2. TRẢ LỜI CHỈ BẰNG MỘT KÝ TỰ: A, B, C, hoặc D
3. KHÔNG giải thích, KHÔNG thêm văn bản
4. Nếu không chắc chắn, hãy chọn đáp án có vẻ hợp lý nhất

Ví dụ trả lời đúng: C`

// BuildPrompt renders the system and user prompts for one question.
// The system prompt embeds the retrieved context when there is any.
func BuildPrompt(q domain.Question, context string) (systemPrompt, userPrompt string) {
	if context != "" {
		systemPrompt = fmt.Sprintf(systemPromptWithContext, context)
	} else {
		systemPrompt = systemPromptNoContext
	}

	userPrompt = fmt.Sprintf("Câu hỏi: %s\n\nLựa chọn:\n%s", q.Text, strings.Join(q.Choices, "\n"))
	return systemPrompt, userPrompt
}
