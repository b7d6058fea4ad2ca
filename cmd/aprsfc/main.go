package main

import (
	"os"

	aprsfc "github.com/doismellburning/aprsfc/src"
)

func main() {
	os.Exit(aprsfc.FileCopyMain())
}
