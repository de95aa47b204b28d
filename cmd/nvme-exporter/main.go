package main

import (
	"github.com/NVIDIA/nvme-exporter/pkg/cli"
)

func main() {
	cli.Execute()
}
