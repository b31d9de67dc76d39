/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package main

import "github.com/azure/resource-graph-catalog-ingester/cmd"

func main() {
	cmd.Execute()
}
