// Command tabipb computes the electrostatic solvation free energy of a
// biomolecule by solving the Poisson–Boltzmann boundary integral
// equation on a triangulated molecular surface with a
// treecode-accelerated, GMRES-driven solver.
package main

import (
	"context"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/hochshi/TABI-PB/cluster"
	"github.com/hochshi/TABI-PB/constants"
	"github.com/hochshi/TABI-PB/elements"
	"github.com/hochshi/TABI-PB/interaction"
	"github.com/hochshi/TABI-PB/molecule"
	"github.com/hochshi/TABI-PB/output"
	"github.com/hochshi/TABI-PB/params"
	"github.com/hochshi/TABI-PB/tree"
	"github.com/hochshi/TABI-PB/treecode"
)

// nonpolarSurfaceTension is the SASA surface-tension coefficient used
// for the optional nonpolar term, in kcal/(mol*A^2).
const nonpolarSurfaceTension = 0.005

// Exit codes per error kind.
const (
	exitConfig   = 1
	exitIO       = 2
	exitGeometry = 3
	exitInternal = 4
)

func main() {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "tabipb <paramfile>",
		Short: "Treecode-accelerated boundary integral Poisson-Boltzmann solver",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if verbose {
				logrus.SetLevel(logrus.DebugLevel)
			}
			return run(cmd.Context(), args[0])
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "log per-iteration residuals")

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		logrus.Error(err)
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	var configErr *params.ConfigError
	var geomErr *elements.GeometryError
	var argErr *treecode.InvalidArgumentError

	switch {
	case errors.As(err, &configErr):
		return exitConfig
	case errors.As(err, &geomErr):
		return exitGeometry
	case errors.As(err, &argErr):
		return exitInternal
	}
	return exitIO
}

func run(ctx context.Context, paramFile string) error {
	var timers output.Timers
	start := time.Now()

	p, err := params.Read(paramFile)
	if err != nil {
		return err
	}

	logrus.Infof("Treecode order: %d", p.TreeDegree)
	logrus.Infof("Max particles per leaf: %d", p.TreeMaxPerLeaf)
	logrus.Infof("MAC (theta): %f", p.TreeTheta)

	mol, err := molecule.ReadPQR(p.PQRFile)
	if err != nil {
		return err
	}

	var elems *elements.Elements
	err = output.Phase(&timers.Surface, func() error {
		surf, err := elements.GenerateSurface(p, mol)
		if err != nil {
			return err
		}
		elems, err = elements.New(surf)
		return err
	})
	if err != nil {
		return err
	}

	err = output.Phase(&timers.SourceTerm, func() error {
		return elems.ComputeSourceTerm(mol, p.EpsSolute)
	})
	if err != nil {
		return err
	}

	var t *tree.Tree
	err = output.Phase(&timers.Tree, func() error {
		t = tree.Build(elems, p.TreeMaxPerLeaf)
		elems.Reorder()
		return nil
	})
	if err != nil {
		return err
	}

	var clusters *cluster.Clusters
	output.Phase(&timers.Clusters, func() error {
		clusters = cluster.New(elems, t, p.TreeDegree)
		return nil
	})

	var lists *interaction.List
	output.Phase(&timers.Lists, func() error {
		lists = interaction.Build(t, p.TreeTheta, p.TreeClusterParticles)
		return nil
	})

	tc := treecode.New(elems, clusters, t, lists, p)

	err = output.Phase(&timers.Solve, func() error {
		return tc.RunGMRES(ctx)
	})
	if err != nil {
		var warn *treecode.ConvergenceWarning
		if !errors.As(err, &warn) {
			return err
		}
		logrus.Warn(warn)
	}

	res := &output.Result{
		Elements:   elems,
		Potential:  tc.Potential(),
		Iterations: tc.Iterations,
	}

	output.Phase(&timers.Energy, func() error {
		res.SolvationEnergy = elems.SolvationEnergy(mol, p.Eps, p.Kappa, res.Potential) *
			constants.UnitsPara
		res.CoulombEnergy = mol.CoulombEnergy(p.EpsSolute) * constants.UnitsCoeff
		if p.Nonpolar {
			res.NonpolarEnergy = nonpolarSurfaceTension * elems.SurfaceArea
		}
		return nil
	})

	elems.Unorder(res.Potential)

	logrus.Infof("Solvation energy: %f kJ/mol", res.SolvationEnergy)
	logrus.Infof("Coulomb energy:   %f kJ/mol", res.CoulombEnergy)
	if p.Nonpolar {
		logrus.Infof("Nonpolar energy:  %f kcal/mol", res.NonpolarEnergy)
	}
	logrus.Infof("GMRES iterations: %d", res.Iterations)

	if err := output.Write(p, res); err != nil {
		return err
	}

	timers.Total = time.Since(start)
	if p.OutputTimers {
		timers.Log()
		if err := output.WriteTimers(p.OutputPrefix+"_timers.csv", &timers); err != nil {
			return err
		}
	}

	return nil
}
