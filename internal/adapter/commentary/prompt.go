// Package commentary produces the dealer's remark after each settled round.
package commentary

import (
	"fmt"
	"strconv"
	"strings"

	"taixiu-dealer/internal/core/ports"
)

const dealerPersona = "Bạn là Dealer sòng bài sang trọng. Ngôn ngữ: Tiếng Việt. Phong cách: Chuyên nghiệp, lôi cuốn."

// buildPrompt renders the round for the dealer persona.
func buildPrompt(req ports.CommentaryRequest) string {
	r := req.Result
	faces := make([]string, len(r.Dice))
	for i, f := range r.Dice {
		faces[i] = strconv.Itoa(f)
	}

	var b strings.Builder
	b.WriteString("Bạn là một Dealer (người chia bài) chuyên nghiệp, quyến rũ và thông minh tại sòng bài \"Royal Tai Xiu\".\n")
	b.WriteString("Kết quả ván vừa rồi:\n")
	fmt.Fprintf(&b, "- Xúc xắc: %s\n", strings.Join(faces, ", "))
	fmt.Fprintf(&b, "- Tổng điểm: %d\n", r.Total)
	fmt.Fprintf(&b, "- Cửa thắng: %s\n", r.Side.Label())
	fmt.Fprintf(&b, "- Số dư hiện tại của người chơi: %s chip.\n\n", formatChips(req.Balance))
	b.WriteString("Hãy đưa ra một câu bình luận ngắn gọn (dưới 30 chữ) bằng tiếng Việt để chúc mừng hoặc an ủi người chơi một cách sang trọng.\n")
	b.WriteString("Có thể pha chút hài hước hoặc mời gọi họ đặt cược tiếp.\n")
	b.WriteString("Nếu tổng điểm là bộ ba (3 con giống nhau), hãy nhấn mạnh đây là trường hợp đặc biệt (Bão).")
	if r.IsTriple() {
		b.WriteString("\nVán này là Bão!")
	}
	return b.String()
}

// formatChips groups digits in thousands: 1000000 -> "1,000,000".
func formatChips(n int64) string {
	s := strconv.FormatInt(n, 10)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var b strings.Builder
	for i, c := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}
