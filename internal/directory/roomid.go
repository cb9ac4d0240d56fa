package directory

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

var places = []string{
	"atrium", "bridge", "canyon", "dome", "foundry", "garden", "hangar", "harbor", "lagoon", "loft",
	"meadow", "observatory", "orchard", "plaza", "quarry", "reef", "studio", "summit", "tundra", "vault",
}

var materials = []string{
	"amber", "basalt", "bronze", "chrome", "cobalt", "copper", "crystal", "glass", "granite", "ivory",
	"jade", "marble", "neon", "obsidian", "onyx", "pearl", "quartz", "silver", "slate", "velvet",
}

var moods = []string{
	"brave", "calm", "cozy", "curious", "dreamy", "eager", "gentle", "jolly", "lucky", "mellow",
	"merry", "nimble", "plucky", "quiet", "sleepy", "snappy", "sunny", "swift", "witty", "zesty",
}

var creatures = []string{
	"badger", "comet", "dolphin", "falcon", "fox", "gecko", "heron", "koala", "lynx", "manta",
	"narwhal", "otter", "owl", "panda", "puffin", "raven", "sprite", "tapir", "walrus", "yak",
}

// GenerateRoomID returns a memorable id such as "sunny-cobalt-hangar-otter",
// retrying until taken reports the id as free.
func GenerateRoomID(taken func(string) bool) string {
	for {
		id := fmt.Sprintf("%s-%s-%s-%s", pick(moods), pick(materials), pick(places), pick(creatures))
		if taken == nil || !taken(id) {
			return id
		}
	}
}

func pick(words []string) string {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(words))))
	if err != nil {
		panic(fmt.Sprintf("generate room id: %v", err))
	}
	return words[n.Int64()]
}
