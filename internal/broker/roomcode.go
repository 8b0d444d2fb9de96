package broker

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

type CodeStyle string

const (
	// CodeDigits is a six digit number, the format browser peers expect.
	CodeDigits CodeStyle = "digits"
	// CodeWords is a hyphenated phrase such as "sleepy-otter-waffle".
	CodeWords CodeStyle = "words"
)

// CodeGenerator produces one candidate room code. Uniqueness is checked by
// the RoomRegistry.
type CodeGenerator func() (string, error)

func NewCodeGenerator(style CodeStyle) (CodeGenerator, error) {
	switch style {
	case CodeDigits, "":
		return DigitCode, nil
	case CodeWords:
		return WordCode, nil
	default:
		return nil, fmt.Errorf("unknown room code style %q", style)
	}
}

// DigitCode returns a number in [100000, 999999].
func DigitCode() (string, error) {
	n, err := randomIndex(900000)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", 100000+n), nil
}

// WordCode picks one word from each of three distinct lists.
func WordCode() (string, error) {
	lists := [][]string{adjectives, animals, dishes, places}
	order, err := pickDistinct(len(lists), 3)
	if err != nil {
		return "", err
	}

	words := make([]string, 0, len(order))
	for _, li := range order {
		i, err := randomIndex(len(lists[li]))
		if err != nil {
			return "", err
		}
		words = append(words, lists[li][i])
	}
	return strings.Join(words, "-"), nil
}

func pickDistinct(n, k int) ([]int, error) {
	picked := make([]int, 0, k)
	used := make(map[int]bool, k)
	for len(picked) < k {
		i, err := randomIndex(n)
		if err != nil {
			return nil, err
		}
		if used[i] {
			continue
		}
		used[i] = true
		picked = append(picked, i)
	}
	return picked, nil
}

// randomIndex returns a cryptographically secure index in [0, max).
func randomIndex(max int) (int, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(max)))
	if err != nil {
		return 0, fmt.Errorf("generate random index: %w", err)
	}
	return int(n.Int64()), nil
}

var adjectives = []string{
	"tiny", "happy", "sleepy", "fluffy", "sparkly", "cheery", "silly", "jolly", "cozy", "shiny",
	"brave", "calm", "eager", "gentle", "lively", "merry", "nimble", "proud", "quiet", "swift",
}

var animals = []string{
	"kitten", "puppy", "bunny", "panda", "koala", "fox", "otter", "hedgehog", "squirrel", "hamster",
	"beaver", "seahorse", "dolphin", "narwhal", "penguin", "flamingo", "pelican", "robin", "toucan", "parrot",
}

var dishes = []string{
	"pancake", "waffle", "sushi", "ramen", "curry", "taco", "burrito", "biryani", "paella", "risotto",
	"dumpling", "noodle", "omelette", "quiche", "kebab", "fondue", "gnocchi", "falafel", "samosa", "poutine",
}

var places = []string{
	"harbor", "meadow", "canyon", "glacier", "lagoon", "orchard", "prairie", "summit", "valley", "island",
	"forest", "delta", "dune", "fjord", "grove", "marsh", "mesa", "reef", "ridge", "tundra",
}
