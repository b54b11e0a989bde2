package main

import (
	"github.com/stellarlinkco/openmath-eval/internal/benchmark"
	"github.com/stellarlinkco/openmath-eval/internal/llm"
	"github.com/stellarlinkco/openmath-eval/internal/openmath"
	"github.com/stellarlinkco/openmath-eval/internal/retrieval"
	"github.com/stellarlinkco/openmath-eval/internal/store"
)

var (
	defaultProviderFromConfig = llm.DefaultProviderFromConfig
	openStore                 = store.Open
	loadDataset               = benchmark.LoadMATH
	loadReranked              = retrieval.LoadReranked
	loadKB                    = openmath.LoadKB
	loadIndex                 = retrieval.LoadIndex
)
