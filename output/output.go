// Package output writes the solved surface potential to disk in the
// formats selected by the outdata configuration keys.
package output

import (
	"bufio"
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/hochshi/TABI-PB/constants"
	"github.com/hochshi/TABI-PB/elements"
	"github.com/hochshi/TABI-PB/params"
)

// potentialScale converts the internal surface potential to the
// reported units.
const potentialScale = constants.UnitsCoeff * 4 * constants.Pi

// Result collects everything the writers report: the element set in
// original input order, the solved 2N potential vector, energies and
// solve statistics.
type Result struct {
	Elements  *elements.Elements
	Potential []float64

	SolvationEnergy float64
	CoulombEnergy   float64
	NonpolarEnergy  float64

	Iterations int
}

// Write emits every output format the run selected.
func Write(p *params.Params, res *Result) error {
	if p.OutputCSV || p.OutputCSVHeaders {
		if err := writeCSV(p.OutputPrefix+".csv", res, p.OutputCSVHeaders); err != nil {
			return err
		}
	}
	if p.OutputVTK {
		if err := writeVTK(p.OutputPrefix+".vtk", res); err != nil {
			return err
		}
	}
	if p.OutputPLY {
		if err := writePLY(p.OutputPrefix+".ply", res); err != nil {
			return err
		}
	}
	return nil
}

// writeCSV writes one row per element: position, normal, area, and the
// scaled potential and normal derivative.
func writeCSV(path string, res *Result, headers bool) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "creating csv output")
	}
	defer f.Close()

	w := bufio.NewWriter(f)

	e := res.Elements
	n := e.Num()

	if headers {
		fmt.Fprintln(w, "x,y,z,nx,ny,nz,area,potential,normal_derivative")
	}

	for i := 0; i < n; i++ {
		fmt.Fprintf(w, "%g,%g,%g,%g,%g,%g,%g,%g,%g\n",
			e.X[i], e.Y[i], e.Z[i],
			e.Nx[i], e.Ny[i], e.Nz[i], e.Area[i],
			res.Potential[i]*potentialScale,
			res.Potential[n+i]*potentialScale)
	}

	if err := w.Flush(); err != nil {
		return errors.Wrap(err, "writing csv output")
	}

	logrus.Infof("Wrote %s", path)
	return nil
}

// writeVTK writes a legacy-VTK polydata file with the triangulation and
// the scaled potential and normal derivative as point data.
func writeVTK(path string, res *Result) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "creating vtk output")
	}
	defer f.Close()

	w := bufio.NewWriter(f)

	e := res.Elements
	surf := e.Surface()
	n := e.Num()

	fmt.Fprintln(w, "# vtk DataFile Version 1.0")
	fmt.Fprintln(w, "vtk file output.vtk")
	fmt.Fprintln(w, "ASCII")
	fmt.Fprintln(w, "DATASET POLYDATA")

	fmt.Fprintf(w, "POINTS %d double\n", n)
	for i := 0; i < n; i++ {
		fmt.Fprintf(w, "%f %f %f\n", e.X[i], e.Y[i], e.Z[i])
	}

	numFaces := surf.NumFaces()
	fmt.Fprintf(w, "POLYGONS %d %d\n", numFaces, 4*numFaces)
	for i := 0; i < numFaces; i++ {
		fmt.Fprintf(w, "3 %d %d %d\n", surf.FaceA[i], surf.FaceB[i], surf.FaceC[i])
	}

	fmt.Fprintf(w, "POINT_DATA %d\n", n)
	fmt.Fprintln(w, "SCALARS PotentialVert double")
	fmt.Fprintln(w, "LOOKUP_TABLE default")
	for i := 0; i < n; i++ {
		fmt.Fprintf(w, "%f\n", res.Potential[i]*potentialScale)
	}

	fmt.Fprintln(w, "SCALARS NormalPotentialVert double")
	fmt.Fprintln(w, "LOOKUP_TABLE default")
	for i := 0; i < n; i++ {
		fmt.Fprintf(w, "%f\n", res.Potential[n+i]*potentialScale)
	}

	fmt.Fprintln(w, "NORMALS VertNorms double")
	for i := 0; i < n; i++ {
		fmt.Fprintf(w, "%f %f %f\n", e.Nx[i], e.Ny[i], e.Nz[i])
	}

	if err := w.Flush(); err != nil {
		return errors.Wrap(err, "writing vtk output")
	}

	logrus.Infof("Wrote %s", path)
	return nil
}

// writePLY writes an ASCII PLY file carrying the vertex potential and
// normal derivative as extra vertex properties.
func writePLY(path string, res *Result) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "creating ply output")
	}
	defer f.Close()

	w := bufio.NewWriter(f)

	e := res.Elements
	surf := e.Surface()
	n := e.Num()

	fmt.Fprintln(w, "ply")
	fmt.Fprintln(w, "format ascii 1.0")
	fmt.Fprintf(w, "element vertex %d\n", n)
	for _, prop := range []string{"x", "y", "z", "nx", "ny", "nz", "potential", "normal_derivative"} {
		fmt.Fprintf(w, "property float %s\n", prop)
	}
	fmt.Fprintf(w, "element face %d\n", surf.NumFaces())
	fmt.Fprintln(w, "property list uchar uint vertex_indices")
	fmt.Fprintln(w, "end_header")

	for i := 0; i < n; i++ {
		fmt.Fprintf(w, "%f %f %f %f %f %f %f %f\n",
			e.X[i], e.Y[i], e.Z[i],
			e.Nx[i], e.Ny[i], e.Nz[i],
			res.Potential[i]*potentialScale,
			res.Potential[n+i]*potentialScale)
	}
	for i := 0; i < surf.NumFaces(); i++ {
		fmt.Fprintf(w, "3 %d %d %d\n", surf.FaceA[i], surf.FaceB[i], surf.FaceC[i])
	}

	if err := w.Flush(); err != nil {
		return errors.Wrap(err, "writing ply output")
	}

	logrus.Infof("Wrote %s", path)
	return nil
}
