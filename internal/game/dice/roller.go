package dice

import (
	"taixiu-dealer/internal/core/domain"

	"github.com/rs/zerolog"
)

// Faces is the number of sides on each die.
const Faces = 6

// Roller throws three independent dice from a Source.
type Roller struct {
	src Source
}

// NewRoller creates a Roller over src.
func NewRoller(src Source) *Roller {
	return &Roller{src: src}
}

// Roll returns three faces, each uniform in [1,6].
func (r *Roller) Roll() domain.Dice {
	return domain.Dice{
		r.src.Intn(Faces) + 1,
		r.src.Intn(Faces) + 1,
		r.src.Intn(Faces) + 1,
	}
}

// LoggedRoller logs every roll at debug level.
type LoggedRoller struct {
	*Roller
	log zerolog.Logger
}

// NewLoggedRoller creates a Roller that logs each roll to log.
func NewLoggedRoller(src Source, log zerolog.Logger) *LoggedRoller {
	return &LoggedRoller{Roller: NewRoller(src), log: log}
}

// Roll rolls and logs the faces and total.
func (r *LoggedRoller) Roll() domain.Dice {
	d := r.Roller.Roll()
	r.log.Debug().
		Ints("dice", d[:]).
		Int("total", d.Total()).
		Bool("triple", d.IsTriple()).
		Msg("dice roll")
	return d
}
