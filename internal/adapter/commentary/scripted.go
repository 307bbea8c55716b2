package commentary

import (
	"context"
	"fmt"

	"taixiu-dealer/internal/core/domain"
	"taixiu-dealer/internal/core/ports"
)

var (
	bigLines = []string{
		"Tài %d điểm! Cửa lớn rực rỡ, quý khách còn %s chip. Ván nữa chứ?",
		"Xúc xắc gọi tên Tài với %d điểm. Số dư %s chip đang chờ quý khách.",
		"%d điểm, Tài thẳng tiến! Quý khách đang có %s chip.",
	}
	smallLines = []string{
		"Xỉu %d điểm, nhẹ nhàng mà tinh tế. Quý khách còn %s chip.",
		"Cửa Xỉu lên ngôi với %d điểm. Số dư %s chip, mời quý khách tiếp tục.",
		"%d điểm Xỉu! Bàn vẫn đợi quý khách với %s chip.",
	}
)

// ScriptedCommentator picks a canned remark from the result. It never calls out.
type ScriptedCommentator struct{}

// NewScriptedCommentator creates a ScriptedCommentator.
func NewScriptedCommentator() *ScriptedCommentator {
	return &ScriptedCommentator{}
}

// Comment implements ports.Commentator. The same result always yields the same line.
func (ScriptedCommentator) Comment(_ context.Context, req ports.CommentaryRequest) (string, error) {
	r := req.Result
	chips := formatChips(req.Balance)

	if r.IsTriple() {
		return fmt.Sprintf("Bão %d-%d-%d! Ván đặc biệt hiếm có, quý khách còn %s chip.", r.Dice[0], r.Dice[1], r.Dice[2], chips), nil
	}

	lines := smallLines
	if r.Side == domain.SideBig {
		lines = bigLines
	}
	line := lines[(r.Dice[0]*36+r.Dice[1]*6+r.Dice[2])%len(lines)]
	return fmt.Sprintf(line, r.Total, chips), nil
}
