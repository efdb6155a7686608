// Command caqdemo builds a tiny synthetic cluster and beam buffer, then
// runs a handful of queries concurrently to exercise the estimator and beam
// packages end to end. It exists to give the core something runnable; the
// actual library boundary is the caq/* packages, not this binary.
package main

import (
	"context"
	"math/rand/v2"
	"os"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/caqsearch/caq"
	"github.com/caqsearch/caq/beam"
	"github.com/caqsearch/caq/bits"
	"github.com/caqsearch/caq/config"
	"github.com/caqsearch/caq/estimator"
	"github.com/caqsearch/caq/quant"
	"github.com/caqsearch/caq/rotation"
)

const (
	dim        = 128
	numBits    = 4
	numVectors = 256
	numQueries = 8
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	if err := run(log); err != nil {
		log.WithError(err).Fatal("caqdemo: run failed")
		os.Exit(1)
	}
}

func run(log *logrus.Logger) error {
	rotator := rotation.NewRandomOrthonormal(dim, 1)
	base, err := quant.NewBaseQuantizerData(dim, numBits, rotator, true)
	if err != nil {
		return err
	}

	cluster, err := quant.NewCAQClusterData(base, numVectors)
	if err != nil {
		return err
	}
	defer func() {
		if err := cluster.Release(); err != nil {
			log.WithError(err).Warn("caqdemo: releasing cluster storage")
		}
	}()

	rng := rand.New(rand.NewPCG(42, 7))
	populateSyntheticCluster(cluster, base, rng)

	cfg := config.New(caq.DistL2Sqr, true, 1.0)

	group, _ := errgroup.WithContext(context.Background())
	for q := 0; q < numQueries; q++ {
		query := randomVector(dim, rng)
		qlog := log.WithField("query", q)
		group.Go(func() error {
			return runQuery(qlog, base, cfg, cluster, query)
		})
	}
	return group.Wait()
}

// runQuery demonstrates the prepare -> (compFastDist -> compAccurateDist)*
// -> insert -> pop ordering the estimator/beam contract requires. Distinct
// estimator instances over the same BaseQuantizerData are safe to run
// concurrently, which is exactly what the errgroup fan-out in run does.
func runQuery(log *logrus.Entry, base *quant.BaseQuantizerData, cfg config.SearcherConfig, cluster *quant.CAQClusterData, query []float32) error {
	est, err := estimator.NewClusterEstimator(base, cfg, query)
	if err != nil {
		return err
	}
	if err := est.Prepare(cluster); err != nil {
		return err
	}

	results := beam.New(10)
	var scratch [2][16]float32
	for blk := 0; blk < cluster.NumBlocks(); blk++ {
		if err := est.CompFastDist(blk, &scratch); err != nil {
			return err
		}
		for j := 0; j < caq.FastScanBlockSize; j++ {
			vecIdx := blk*caq.FastScanBlockSize + j
			if vecIdx >= cluster.NumVectors() {
				break
			}
			fast := scratch[j/16][j%16]
			if fast >= results.TopDist() && results.Len() == results.Cap() {
				continue
			}
			accurate, err := est.CompAccurateDist(vecIdx)
			if err != nil {
				return err
			}
			results.Insert(caq.PointID(vecIdx), accurate)
		}
	}

	ids := make([]caq.PointID, results.Len())
	results.CopyResults(ids)
	log.WithField("top_k", ids).WithField("metrics", est.RuntimeMetrics()).Info("caqdemo: query complete")
	return nil
}

func randomVector(d int, rng *rand.Rand) []float32 {
	v := make([]float32, d)
	for i := range v {
		v[i] = float32(rng.NormFloat64())
	}
	return v
}

// populateSyntheticCluster fills every block with plausible, if arbitrary,
// codes and factors so the demo has something to estimate against.
func populateSyntheticCluster(cluster *quant.CAQClusterData, base *quant.BaseQuantizerData, rng *rand.Rand) {
	cluster.SetCentroid(randomVector(base.NumDimPadded, rng))

	groups := base.NumDimPadded / 4
	exBits := base.ExBits()
	for blk := 0; blk < cluster.NumBlocks(); blk++ {
		norms := make([]float32, caq.FastScanBlockSize)
		code := make([]byte, caq.FastScanBlockSize*groups)
		for j := 0; j < caq.FastScanBlockSize; j++ {
			norms[j] = float32(rng.Float64() * 4)
			for g := 0; g < groups; g++ {
				code[j*groups+g] = byte(rng.IntN(16))
			}
		}
		if err := cluster.SetBlock(blk, norms, code); err != nil {
			continue
		}

		for j := 0; j < caq.FastScanBlockSize; j++ {
			vecIdx := blk*caq.FastScanBlockSize + j
			if vecIdx >= cluster.NumVectors() {
				break
			}
			planes := make([][]uint64, exBits)
			for p := range planes {
				words := make([]uint64, bits.WordsFor(base.NumDimPadded))
				for w := range words {
					words[w] = rng.Uint64()
				}
				planes[p] = words
			}
			if err := cluster.SetVector(vecIdx, planes, caq.ExFactor{Rescale: 1}); err != nil {
				continue
			}
		}
	}
}
