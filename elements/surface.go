package elements

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/hochshi/TABI-PB/molecule"
	"github.com/hochshi/TABI-PB/params"
)

// Surface is a triangulated molecular surface: one vertex per boundary
// element, with outward unit normals, and zero-based triangle faces.
type Surface struct {
	VertX, VertY, VertZ []float64
	NormX, NormY, NormZ []float64

	FaceA, FaceB, FaceC []int
}

// NumVertices returns the vertex count.
func (s *Surface) NumVertices() int { return len(s.VertX) }

// NumFaces returns the triangle count.
func (s *Surface) NumFaces() int { return len(s.FaceA) }

// GenerateSurface produces the triangulated surface for a run. When no
// input mesh prefix is configured, the molecule is written to an xyzr
// file, NanoShaper is invoked in the working directory and its output
// files are consumed and removed.
func GenerateSurface(p *params.Params, mol *molecule.Molecule) (*Surface, error) {
	prefix := p.InputMeshPrefix
	generated := prefix == ""

	if generated {
		prefix = "triangulatedSurf"

		if err := mol.WriteXYZR("molecule.xyzr"); err != nil {
			return nil, err
		}
		if err := writeNanoShaperConfig(p); err != nil {
			return nil, err
		}
		if err := runNanoShaper(); err != nil {
			return nil, err
		}

		os.Remove("stderror.txt")
		os.Remove("surfaceConfiguration.prm")
		os.Remove("triangleAreas.txt")
		os.Remove("exposed.xyz")
		os.Remove("exposedIndices.txt")
	}

	var surf *Surface
	var err error
	if p.MeshFormat == params.PLY {
		surf, err = ReadPLY(prefix + ".ply")
	} else {
		surf, err = ReadMSMS(prefix)
	}
	if err != nil {
		return nil, err
	}

	if generated {
		if p.MeshFormat == params.PLY {
			os.Remove("triangulatedSurf.ply")
		} else {
			os.Remove("triangulatedSurf.vert")
			os.Remove("triangulatedSurf.face")
		}
		os.Remove("molecule.xyzr")
	}

	return surf, nil
}

func writeNanoShaperConfig(p *params.Params) error {
	f, err := os.Create("surfaceConfiguration.prm")
	if err != nil {
		return errors.Wrap(err, "creating NanoShaper configuration")
	}
	defer f.Close()

	w := bufio.NewWriter(f)

	fmt.Fprintf(w, "Grid_scale = %g\n", p.MeshDensity)
	fmt.Fprintf(w, "Grid_perfil = %g\n", 90.0)
	fmt.Fprintf(w, "XYZR_FileName = %s\n", "molecule.xyzr")
	fmt.Fprintf(w, "Build_epsilon_maps = %s\n", "false")
	fmt.Fprintf(w, "Build_status_map = %s\n", "false")

	if p.MeshFormat == params.PLY {
		fmt.Fprintf(w, "Save_Mesh_PLY_Format = %s\n", "true")
	} else {
		fmt.Fprintf(w, "Save_Mesh_MSMS_Format = %s\n", "true")
	}

	fmt.Fprintf(w, "Compute_Vertex_Normals = %s\n", "true")

	if p.Mesh == params.SES {
		fmt.Fprintf(w, "Surface = %s\n", "ses")
	}
	if p.Mesh == params.Skin {
		fmt.Fprintf(w, "Surface = %s\n", "skin")
	}

	fmt.Fprintf(w, "Smooth_Mesh = %s\n", "true")
	fmt.Fprintf(w, "Skin_Surface_Parameter = %g\n", 0.45)
	fmt.Fprintf(w, "Cavity_Detection_Filling = %s\n", "false")
	fmt.Fprintf(w, "Conditional_Volume_Filling_Value = %g\n", 11.4)
	fmt.Fprintf(w, "Keep_Water_Shaped_Cavities = %s\n", "false")
	fmt.Fprintf(w, "Probe_Radius = %g\n", p.ProbeRadius)
	fmt.Fprintf(w, "Accurate_Triangulation = %s\n", "true")
	fmt.Fprintf(w, "Triangulation = %s\n", "true")
	fmt.Fprintf(w, "Check_duplicated_vertices = %s\n", "true")
	fmt.Fprintf(w, "Save_Status_map = %s\n", "false")
	fmt.Fprintf(w, "Save_PovRay = %s\n", "false")
	fmt.Fprintf(w, "Max_ses_patches_per_auxiliary_grid_2d_cell = %d\n", 1600)
	fmt.Fprintf(w, "Max_ses_patches_auxiliary_grid_2d_size = %d\n", 50)

	return w.Flush()
}

func runNanoShaper() error {
	name := "NanoShaper"
	if runtime.GOOS == "windows" {
		name = "NanoShaper.exe"
	}

	cmd := exec.Command(name)
	cmd.Stdout = io.Discard
	cmd.Stderr = io.Discard

	logrus.Info("Running NanoShaper...")
	if err := cmd.Run(); err != nil {
		return errors.Wrap(err, "running NanoShaper")
	}
	return nil
}

// ReadMSMS reads an MSMS-format surface from prefix.vert and
// prefix.face. Both files carry two header lines, then a count line,
// then whitespace-delimited records. Face indices are 1-based on disk
// and converted to 0-based.
func ReadMSMS(prefix string) (*Surface, error) {
	surf := &Surface{}

	err := readMSMSRecords(prefix+".vert", 6, func(vals []float64) {
		surf.VertX = append(surf.VertX, vals[0])
		surf.VertY = append(surf.VertY, vals[1])
		surf.VertZ = append(surf.VertZ, vals[2])
		surf.NormX = append(surf.NormX, vals[3])
		surf.NormY = append(surf.NormY, vals[4])
		surf.NormZ = append(surf.NormZ, vals[5])
	})
	if err != nil {
		return nil, err
	}

	err = readMSMSRecords(prefix+".face", 3, func(vals []float64) {
		surf.FaceA = append(surf.FaceA, int(vals[0])-1)
		surf.FaceB = append(surf.FaceB, int(vals[1])-1)
		surf.FaceC = append(surf.FaceC, int(vals[2])-1)
	})
	if err != nil {
		return nil, err
	}

	return surf, nil
}

func readMSMSRecords(path string, numFields int, emit func([]float64)) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "opening mesh file %s", path)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)

	// Two comment lines, then the record count.
	for i := 0; i < 3; i++ {
		if !scanner.Scan() {
			return errors.Errorf("truncated mesh file %s", path)
		}
	}

	vals := make([]float64, numFields)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) < numFields {
			return errors.Errorf("malformed record in %s: %q", path, scanner.Text())
		}
		for i := 0; i < numFields; i++ {
			v, err := strconv.ParseFloat(fields[i], 64)
			if err != nil {
				return errors.Wrapf(err, "parsing record in %s", path)
			}
			vals[i] = v
		}
		emit(vals)
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "reading mesh file %s", path)
	}
	return nil
}

type plyProperty struct {
	name     string
	typ      string
	isList   bool
	listType string
}

type plyElement struct {
	name  string
	count int
	props []plyProperty
}

// ReadPLY reads a PLY surface carrying vertex properties x, y, z, nx,
// ny, nz and triangular faces with 0-based vertex_indices. ASCII and
// binary little-endian files are supported.
func ReadPLY(path string) (*Surface, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening mesh file %s", path)
	}
	defer f.Close()

	r := bufio.NewReader(f)

	format, elems, err := readPLYHeader(r)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing PLY header of %s", path)
	}

	surf := &Surface{}
	for _, elem := range elems {
		switch elem.name {
		case "vertex":
			err = readPLYVertices(r, format, elem, surf)
		case "face":
			err = readPLYFaces(r, format, elem, surf)
		default:
			err = skipPLYElement(r, format, elem)
		}
		if err != nil {
			return nil, errors.Wrapf(err, "reading PLY element %s of %s", elem.name, path)
		}
	}

	if surf.NumVertices() == 0 || surf.NumFaces() == 0 {
		return nil, errors.Errorf("PLY file %s has no vertices or faces", path)
	}
	return surf, nil
}

func readPLYHeader(r *bufio.Reader) (format string, elems []plyElement, err error) {
	line, err := r.ReadString('\n')
	if err != nil || strings.TrimSpace(line) != "ply" {
		return "", nil, errors.New("missing ply magic")
	}

	for {
		line, err = r.ReadString('\n')
		if err != nil {
			return "", nil, err
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "format":
			if len(fields) < 2 {
				return "", nil, errors.New("malformed format line")
			}
			format = fields[1]
			if format != "ascii" && format != "binary_little_endian" {
				return "", nil, errors.Errorf("unsupported PLY format %s", format)
			}

		case "comment", "obj_info":

		case "element":
			if len(fields) < 3 {
				return "", nil, errors.New("malformed element line")
			}
			count, err := strconv.Atoi(fields[2])
			if err != nil {
				return "", nil, err
			}
			elems = append(elems, plyElement{name: fields[1], count: count})

		case "property":
			if len(elems) == 0 {
				return "", nil, errors.New("property before element")
			}
			elem := &elems[len(elems)-1]
			if fields[1] == "list" {
				if len(fields) < 5 {
					return "", nil, errors.New("malformed list property")
				}
				elem.props = append(elem.props, plyProperty{
					name: fields[4], typ: fields[3], isList: true, listType: fields[2],
				})
			} else {
				if len(fields) < 3 {
					return "", nil, errors.New("malformed property")
				}
				elem.props = append(elem.props, plyProperty{name: fields[2], typ: fields[1]})
			}

		case "end_header":
			return format, elems, nil

		default:
			return "", nil, errors.Errorf("unexpected header line %q", strings.TrimSpace(line))
		}
	}
}

func plyTypeSize(typ string) int {
	switch typ {
	case "char", "uchar", "int8", "uint8":
		return 1
	case "short", "ushort", "int16", "uint16":
		return 2
	case "int", "uint", "int32", "uint32", "float", "float32":
		return 4
	case "double", "float64":
		return 8
	}
	return 0
}

func readPLYBinaryScalar(r *bufio.Reader, typ string) (float64, error) {
	buf := make([]byte, plyTypeSize(typ))
	if _, err := io.ReadFull(r, buf); err != nil {
		return 0, err
	}
	switch typ {
	case "char", "int8":
		return float64(int8(buf[0])), nil
	case "uchar", "uint8":
		return float64(buf[0]), nil
	case "short", "int16":
		return float64(int16(binary.LittleEndian.Uint16(buf))), nil
	case "ushort", "uint16":
		return float64(binary.LittleEndian.Uint16(buf)), nil
	case "int", "int32":
		return float64(int32(binary.LittleEndian.Uint32(buf))), nil
	case "uint", "uint32":
		return float64(binary.LittleEndian.Uint32(buf)), nil
	case "float", "float32":
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(buf))), nil
	case "double", "float64":
		return math.Float64frombits(binary.LittleEndian.Uint64(buf)), nil
	}
	return 0, errors.Errorf("unsupported PLY type %s", typ)
}

// readPLYRow returns the scalar values of one element row; list
// properties expand to their items.
func readPLYRow(r *bufio.Reader, format string, elem plyElement) (map[string][]float64, error) {
	row := make(map[string][]float64, len(elem.props))

	if format == "ascii" {
		line, err := r.ReadString('\n')
		if err != nil && len(strings.TrimSpace(line)) == 0 {
			return nil, err
		}
		fields := strings.Fields(line)
		pos := 0
		next := func() (float64, error) {
			if pos >= len(fields) {
				return 0, errors.New("truncated PLY row")
			}
			v, err := strconv.ParseFloat(fields[pos], 64)
			pos++
			return v, err
		}
		for _, prop := range elem.props {
			n := 1
			if prop.isList {
				cnt, err := next()
				if err != nil {
					return nil, err
				}
				n = int(cnt)
			}
			vals := make([]float64, n)
			for i := range vals {
				v, err := next()
				if err != nil {
					return nil, err
				}
				vals[i] = v
			}
			row[prop.name] = vals
		}
		return row, nil
	}

	for _, prop := range elem.props {
		n := 1
		if prop.isList {
			cnt, err := readPLYBinaryScalar(r, prop.listType)
			if err != nil {
				return nil, err
			}
			n = int(cnt)
		}
		vals := make([]float64, n)
		for i := range vals {
			v, err := readPLYBinaryScalar(r, prop.typ)
			if err != nil {
				return nil, err
			}
			vals[i] = v
		}
		row[prop.name] = vals
	}
	return row, nil
}

func readPLYVertices(r *bufio.Reader, format string, elem plyElement, surf *Surface) error {
	for i := 0; i < elem.count; i++ {
		row, err := readPLYRow(r, format, elem)
		if err != nil {
			return err
		}
		for _, name := range []string{"x", "y", "z", "nx", "ny", "nz"} {
			if _, ok := row[name]; !ok {
				return errors.Errorf("vertex property %s missing", name)
			}
		}
		surf.VertX = append(surf.VertX, row["x"][0])
		surf.VertY = append(surf.VertY, row["y"][0])
		surf.VertZ = append(surf.VertZ, row["z"][0])
		surf.NormX = append(surf.NormX, row["nx"][0])
		surf.NormY = append(surf.NormY, row["ny"][0])
		surf.NormZ = append(surf.NormZ, row["nz"][0])
	}
	return nil
}

func readPLYFaces(r *bufio.Reader, format string, elem plyElement, surf *Surface) error {
	for i := 0; i < elem.count; i++ {
		row, err := readPLYRow(r, format, elem)
		if err != nil {
			return err
		}
		idxs, ok := row["vertex_indices"]
		if !ok {
			idxs, ok = row["vertex_index"]
		}
		if !ok || len(idxs) != 3 {
			return errors.New("face without three vertex indices")
		}
		surf.FaceA = append(surf.FaceA, int(idxs[0]))
		surf.FaceB = append(surf.FaceB, int(idxs[1]))
		surf.FaceC = append(surf.FaceC, int(idxs[2]))
	}
	return nil
}

func skipPLYElement(r *bufio.Reader, format string, elem plyElement) error {
	for i := 0; i < elem.count; i++ {
		if _, err := readPLYRow(r, format, elem); err != nil {
			return err
		}
	}
	return nil
}
